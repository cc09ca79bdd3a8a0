// Package store persists verdicts and derived incident records. The engine
// never depends on it succeeding: persistence failure is reported as a flag
// on the response, not as a request failure.
package store

import (
	"context"
	"time"

	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/engine"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/feature"
)

// Stats are the aggregate counters over all persisted verdicts.
type Stats struct {
	Total      int64   `json:"total_predictions"`
	Attacks    int64   `json:"attack_count"`
	Normal     int64   `json:"normal_count"`
	AttackRate float64 `json:"attack_rate"`
}

// IncidentRow is one incident as read back from the store.
type IncidentRow struct {
	ID         string    `json:"id"`
	VerdictID  string    `json:"verdict_id"`
	Timestamp  time.Time `json:"timestamp"`
	AttackType string    `json:"attack_type"`
	Severity   string    `json:"severity"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
}

// Store is the persistence contract for verdicts and incidents.
type Store interface {
	// SaveVerdict appends a verdict with its key feature subset and returns
	// the new record's id. An empty id with a nil error means the store is
	// disabled and nothing was written.
	SaveVerdict(ctx context.Context, v *engine.Verdict, rec feature.Record, source string) (string, error)

	// SaveIncident appends the incident derived from an attack verdict,
	// linked to the verdict record by id.
	SaveIncident(ctx context.Context, verdictID string, v *engine.Verdict, source string) (string, error)

	// Stats returns the aggregate verdict counters.
	Stats(ctx context.Context) (Stats, error)

	// RecentIncidents returns up to limit incidents, newest first.
	RecentIncidents(ctx context.Context, limit int) ([]IncidentRow, error)

	Ping(ctx context.Context) error
	Close() error
}
