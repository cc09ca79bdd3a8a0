package store

import (
	"context"

	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/engine"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/feature"
)

// noopStore keeps the service answering when Redis is unreachable or
// disabled. Saves report "not persisted" via an empty id; reads are empty.
type noopStore struct{}

// NewNoop returns a Store that persists nothing.
func NewNoop() Store {
	return &noopStore{}
}

func (noopStore) SaveVerdict(context.Context, *engine.Verdict, feature.Record, string) (string, error) {
	return "", nil
}

func (noopStore) SaveIncident(context.Context, string, *engine.Verdict, string) (string, error) {
	return "", nil
}

func (noopStore) Stats(context.Context) (Stats, error) {
	return Stats{}, nil
}

func (noopStore) RecentIncidents(context.Context, int) ([]IncidentRow, error) {
	return nil, nil
}

func (noopStore) Ping(context.Context) error { return nil }
func (noopStore) Close() error               { return nil }
