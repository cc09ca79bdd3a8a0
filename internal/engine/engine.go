// Package engine turns a raw feature record into a final traffic verdict by
// combining the manual rule chain with the pre-trained classifier.
package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/feature"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/oracle"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/rules"
)

// Engine is a pure per-record pipeline around a shared read-only oracle.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	oracle oracle.Oracle
}

func New(o oracle.Oracle) *Engine {
	return &Engine{oracle: o}
}

// Classify produces the verdict for one record. The oracle is invoked on
// every call, including when a manual rule already decided the outcome: the
// probability pair is reported and persisted on both paths.
func (e *Engine) Classify(ctx context.Context, rec feature.Record) (*Verdict, error) {
	match := rules.Evaluate(rec)

	normalProb, attackProb, err := e.score(ctx, rec)
	if err != nil {
		return nil, err
	}

	var (
		prediction int
		confidence float64
		method     string
		reasons    []string
	)

	if match != nil {
		prediction = 1
		confidence = match.Confidence
		method = DetectionManualRules
		reasons = match.Reasons
	} else {
		if attackProb > 0.15 {
			prediction = 1
		} else if attackProb > 0.05 && normalProb < 0.95 {
			prediction = 1
		}
		if prediction == 1 {
			confidence = math.Max(attackProb*100, 60.0)
		} else {
			confidence = normalProb * 100
		}
		method = DetectionMLModel
		reasons = []string{}
	}

	attackPct := attackProb * 100
	normalPct := normalProb * 100
	label, risk := labelAndRisk(prediction, attackPct, normalPct, confidence)

	v := &Verdict{
		Prediction:      prediction,
		PredictionLabel: label,
		RiskLevel:       risk,
		Confidence:      round2(confidence),
		Probabilities: Probabilities{
			Normal: round2(normalPct),
			Attack: round2(attackPct),
		},
		AttackReasons:   reasons,
		DetectionMethod: method,
		FeaturesUsed: FeaturesUsed{
			Count: len(feature.Required),
			List:  feature.Required,
		},
		Timestamp: time.Now().UTC(),
	}

	if prediction == 1 {
		attackType := ClassifyAttack(rec)
		v.Incident = &Incident{
			AttackType: attackType,
			Severity:   Severity(attackPct),
		}
	}

	return v, nil
}

// score builds the normalized vector and invokes the oracle. The vector is
// pre-initialized to zero over the full model feature set; input features
// with no mapping entry contribute nothing.
func (e *Engine) score(ctx context.Context, rec feature.Record) (float64, float64, error) {
	columns := e.oracle.Features()
	mapping := e.oracle.Mapping()

	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}

	vec := make([]float32, len(columns))
	for name, raw := range rec {
		modelFeature, ok := mapping[name]
		if !ok {
			continue
		}
		i, ok := index[modelFeature]
		if !ok {
			continue
		}
		vec[i] = float32(feature.Normalize(name, raw))
	}

	normal, attack, err := e.oracle.Score(ctx, vec)
	if err != nil {
		var se *oracle.ScoringError
		if errors.As(err, &se) {
			return 0, 0, err
		}
		return 0, 0, &oracle.ScoringError{Err: err}
	}
	return normal, attack, nil
}

// labelAndRisk maps a prediction and its probabilities onto the reported
// label and risk tier.
func labelAndRisk(prediction int, attackPct, normalPct, confidence float64) (string, string) {
	if prediction == 1 {
		switch {
		case attackPct > 80 || confidence > 80:
			return "CRITICAL Attack", RiskCritical
		case attackPct > 60 || confidence > 60:
			return "HIGH Attack", RiskHigh
		case attackPct > 40 || confidence > 40:
			return "MEDIUM Attack", RiskMedium
		default:
			return "Suspicious Activity", RiskLow
		}
	}
	switch {
	case normalPct > 95:
		return "Normal", RiskNormal
	case normalPct > 80:
		return "Likely Normal", RiskLow
	default:
		return "Uncertain", RiskMonitor
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
