package oracle

import (
	"context"
	"sync"
)

// Fake is a deterministic Oracle for tests and offline runs. It returns a
// fixed probability pair and records the last vector it was handed.
type Fake struct {
	Normal float64
	Attack float64
	Err    error

	Columns []string
	Map     map[string]string

	mu         sync.Mutex
	lastVector []float32
	calls      int
}

// NewFake returns a Fake scoring normal/attack with an identity mapping over
// the given feature columns. A nil columns slice defaults to the standard
// input feature set.
func NewFake(normal, attack float64, columns []string) *Fake {
	if columns == nil {
		columns = []string{
			"duration", "src_bytes", "dst_bytes", "count", "srv_count",
			"serror_rate", "srv_serror_rate", "dst_host_count",
			"dst_host_srv_count", "dst_host_serror_rate", "dst_host_srv_serror_rate",
		}
	}
	m := make(map[string]string, len(columns))
	for _, c := range columns {
		m[c] = c
	}
	return &Fake{Normal: normal, Attack: attack, Columns: columns, Map: m}
}

func (f *Fake) Features() []string         { return f.Columns }
func (f *Fake) Mapping() map[string]string { return f.Map }

func (f *Fake) Score(_ context.Context, vec []float32) (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastVector = append([]float32(nil), vec...)
	if f.Err != nil {
		return 0, 0, f.Err
	}
	return f.Normal, f.Attack, nil
}

// LastVector returns a copy of the most recent scored vector.
func (f *Fake) LastVector() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float32(nil), f.lastVector...)
}

// Calls reports how many times Score was invoked.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
