// Package rules holds the deterministic override rules that short-circuit
// the ML model for unambiguous attack patterns.
package rules

import (
	"fmt"

	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/feature"
)

// Match is the outcome of a fired rule: the classification is an attack at
// the rule's fixed confidence, with a human-readable reason trail.
type Match struct {
	Reasons    []string
	Confidence float64
}

// Evaluate runs the manual rules against a record in priority order. The
// first rule that fires wins; later rules are not consulted. Returns nil
// when no rule fires and the decision falls through to the model.
func Evaluate(rec feature.Record) *Match {
	count := rec.Get("count")
	srcBytes := rec.Get("src_bytes")
	serror := rec.Get("serror_rate")
	srvSerror := rec.Get("srv_serror_rate")

	switch {
	case count > 500 && serror == 1.0 && srvSerror == 1.0:
		return &Match{
			Reasons:    []string{"Extreme DoS: count>500, 100% errors"},
			Confidence: 99.9,
		}
	case count > 100 && srcBytes == 0:
		return &Match{
			Reasons:    []string{fmt.Sprintf("DoS: count=%g, bytes=0", count)},
			Confidence: 85.0,
		}
	case serror > 0.8 || srvSerror > 0.8:
		return &Match{
			Reasons:    []string{fmt.Sprintf("High error rate: serror=%g", serror)},
			Confidence: 75.0,
		}
	case count > 200 && serror > 0.9 && srvSerror > 0.9:
		return &Match{
			Reasons:    []string{"DDoS pattern"},
			Confidence: 90.0,
		}
	}
	return nil
}
