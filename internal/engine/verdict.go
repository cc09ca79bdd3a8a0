package engine

import "time"

// Detection methods reported in the verdict envelope.
const (
	DetectionManualRules = "Manual Rules"
	DetectionMLModel     = "ML Model"
)

// Risk levels. LOW is reachable from both branches: a weak attack verdict
// and a not-quite-certain normal verdict both land there. That overlap is
// part of the established label contract and is kept as-is.
const (
	RiskCritical = "CRITICAL"
	RiskHigh     = "HIGH"
	RiskMedium   = "MEDIUM"
	RiskLow      = "LOW"
	RiskNormal   = "NORMAL"
	RiskMonitor  = "MONITOR"
)

// Probabilities is the model's output reported as percentages, rounded to
// two decimals. The two values sum to 100 within rounding tolerance.
type Probabilities struct {
	Normal float64 `json:"normal"`
	Attack float64 `json:"attack"`
}

// FeaturesUsed records which input features contributed to a verdict.
type FeaturesUsed struct {
	Count int      `json:"count"`
	List  []string `json:"list"`
}

// Incident is derived from an attack verdict: a labeled attack type plus a
// severity tier for the incident log.
type Incident struct {
	AttackType string `json:"attack_type"`
	Severity   string `json:"severity"`
}

// Verdict is the engine's complete classification output for one record.
// It is assembled once and never mutated.
type Verdict struct {
	Prediction      int           `json:"prediction"`
	PredictionLabel string        `json:"prediction_label"`
	RiskLevel       string        `json:"risk_level"`
	Confidence      float64       `json:"confidence"`
	Probabilities   Probabilities `json:"probabilities"`
	AttackReasons   []string      `json:"attack_reasons"`
	DetectionMethod string        `json:"detection_method"`
	FeaturesUsed    FeaturesUsed  `json:"features_used"`
	Timestamp       time.Time     `json:"timestamp"`

	// Incident is set only when Prediction is 1.
	Incident *Incident `json:"incident,omitempty"`
}

// IsAttack reports whether the verdict classified the record as an attack.
func (v *Verdict) IsAttack() bool { return v.Prediction == 1 }
