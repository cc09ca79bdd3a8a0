// Package oracle wraps the pre-trained traffic classifier. The model is a
// scaler -> PCA -> random-forest pipeline exported as a single ONNX graph;
// it consumes a normalized feature vector and returns a (normal, attack)
// probability pair.
package oracle

import "context"

// Oracle scores a normalized feature vector.
//
// Features returns the model feature namespace in vector order; Mapping
// routes input feature names to that namespace. Both are fixed at load time.
type Oracle interface {
	Features() []string
	Mapping() map[string]string
	Score(ctx context.Context, vec []float32) (normal, attack float64, err error)
}

// ScoringError marks a failed or malformed oracle invocation. Callers must
// surface it per record; a verdict is never defaulted from a failed score.
type ScoringError struct {
	Err error
}

func (e *ScoringError) Error() string {
	return "scoring oracle: " + e.Err.Error()
}

func (e *ScoringError) Unwrap() error { return e.Err }
