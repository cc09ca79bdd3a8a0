package feature

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingFeature flags a record lacking one of the required features.
var ErrMissingFeature = errors.New("missing required feature")

// Required lists the connection features every inbound record must carry.
// The order here is the canonical one used for CSV headers and API errors.
var Required = []string{
	"duration",
	"src_bytes",
	"dst_bytes",
	"count",
	"srv_count",
	"serror_rate",
	"srv_serror_rate",
	"dst_host_count",
	"dst_host_srv_count",
	"dst_host_serror_rate",
	"dst_host_srv_serror_rate",
}

// normFactors maps each feature to its normalization scale factor.
// raw * factor is clamped to [-5, 5] before it reaches the model.
var normFactors = map[string]float64{
	"duration":                 0.01,
	"src_bytes":                0.0001,
	"dst_bytes":                0.0001,
	"count":                    0.01,
	"srv_count":                0.01,
	"serror_rate":              50.0,
	"srv_serror_rate":          50.0,
	"dst_host_count":           0.05,
	"dst_host_srv_count":       0.05,
	"dst_host_serror_rate":     50.0,
	"dst_host_srv_serror_rate": 50.0,
}

// Record is one connection's feature values, keyed by feature name.
// Missing features read as 0.
type Record map[string]float64

// Get returns the value for name, defaulting to 0 when absent.
func (r Record) Get(name string) float64 {
	return r[name]
}

// Coerce converts an arbitrary decoded JSON value to a float64.
// Values that cannot be interpreted as a number become 0. This leniency is
// deliberate: a record with a garbage field still gets classified, it just
// contributes nothing on that feature.
func Coerce(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// FromMap builds a Record from a decoded JSON object, keeping only the
// required features and coercing each value leniently.
func FromMap(raw map[string]any) Record {
	rec := make(Record, len(Required))
	for _, name := range Required {
		rec[name] = Coerce(raw[name])
	}
	return rec
}

// Missing returns the required features absent from raw, in canonical order.
func Missing(raw map[string]any) []string {
	var missing []string
	for _, name := range Required {
		if _, ok := raw[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// FromStrings builds a Record from string cells (one CSV row). Unlike the
// JSON path, a cell that fails to parse is an error: batch rows fail
// individually rather than silently degrading.
func FromStrings(cells map[string]string) (Record, error) {
	rec := make(Record, len(Required))
	for _, name := range Required {
		cell, ok := cells[name]
		if !ok || strings.TrimSpace(cell) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingFeature, name)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return nil, fmt.Errorf("feature %s: invalid numeric value %q", name, cell)
		}
		rec[name] = f
	}
	return rec, nil
}

// Normalize scales a raw feature value into the bounded range the model was
// trained on. Unknown features normalize to 0 and never error.
func Normalize(name string, raw float64) float64 {
	factor, ok := normFactors[name]
	if !ok {
		return 0
	}
	n := raw * factor
	if n > 5.0 {
		return 5.0
	}
	if n < -5.0 {
		return -5.0
	}
	return n
}
