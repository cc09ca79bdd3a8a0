// Package batch classifies many records from one CSV source. Rows are
// processed independently: a bad row becomes an error entry in the result,
// it never aborts the rest of the batch.
package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/alert"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/engine"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/feature"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/store"
)

// RowOutcome is the per-row result: either a verdict or a row-level error.
type RowOutcome struct {
	ID               int                  `json:"id"`
	Prediction       int                  `json:"prediction"`
	PredictionLabel  string               `json:"prediction_label"`
	RiskLevel        string               `json:"risk_level"`
	Confidence       float64              `json:"confidence"`
	Probabilities    engine.Probabilities `json:"probabilities"`
	FeaturesReceived int                  `json:"features_received,omitempty"`
	DetectionMethod  string               `json:"detection_method,omitempty"`
	AttackReasons    []string             `json:"attack_reasons,omitempty"`
	DatabaseSaved    bool                 `json:"database_saved"`
	VerdictID        string               `json:"verdict_id,omitempty"`
	Error            string               `json:"error,omitempty"`
}

// Summary aggregates one batch run.
type Summary struct {
	TotalRecords       int     `json:"total_records"`
	NormalCount        int     `json:"normal_count"`
	AttackCount        int     `json:"attack_count"`
	NormalPercentage   float64 `json:"normal_percentage"`
	AttackPercentage   float64 `json:"attack_percentage"`
	DatabaseSavedCount int     `json:"database_saved_count"`
	ErrorCount         int     `json:"error_count"`
}

// Result is the ordered per-row outcomes plus the batch summary.
type Result struct {
	Predictions []RowOutcome `json:"predictions"`
	Summary     Summary      `json:"summary"`
}

// Processor runs a batch through the engine with optional persistence and
// alerting. Store and Alerts may be nil.
type Processor struct {
	Engine *engine.Engine
	Store  store.Store
	Alerts *alert.Emitter
	Source string
}

// ProcessCSV classifies every row of a CSV stream. The header must contain
// all required feature columns; a malformed header is a batch-level error,
// everything after that is per-row.
func (p *Processor) ProcessCSV(ctx context.Context, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[name] = i
	}
	var missing []string
	for _, name := range feature.Required {
		if _, ok := colIndex[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %v (found: %v)", missing, header)
	}

	res := &Result{Predictions: []RowOutcome{}}
	rowNum := 0
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			res.Predictions = append(res.Predictions, errorOutcome(rowNum, fmt.Errorf("read row: %w", err)))
			res.Summary.ErrorCount++
			continue
		}

		outcome := p.processRow(ctx, rowNum, colIndex, cells)
		if outcome.Error != "" {
			res.Summary.ErrorCount++
		} else if outcome.Prediction == 1 {
			res.Summary.AttackCount++
		} else {
			res.Summary.NormalCount++
		}
		if outcome.DatabaseSaved {
			res.Summary.DatabaseSavedCount++
		}
		res.Predictions = append(res.Predictions, outcome)
	}

	res.Summary.TotalRecords = len(res.Predictions)
	if res.Summary.TotalRecords > 0 {
		total := float64(res.Summary.TotalRecords)
		res.Summary.NormalPercentage = round2(float64(res.Summary.NormalCount) / total * 100)
		res.Summary.AttackPercentage = round2(float64(res.Summary.AttackCount) / total * 100)
	}
	return res, nil
}

func (p *Processor) processRow(ctx context.Context, rowNum int, colIndex map[string]int, cells []string) RowOutcome {
	values := make(map[string]string, len(feature.Required))
	for name, i := range colIndex {
		if i < len(cells) {
			values[name] = cells[i]
		}
	}

	rec, err := feature.FromStrings(values)
	if err != nil {
		return errorOutcome(rowNum, err)
	}

	v, err := p.Engine.Classify(ctx, rec)
	if err != nil {
		return errorOutcome(rowNum, err)
	}

	verdictID, incidentID, saved := p.persist(ctx, v, rec)

	if v.Incident != nil && p.Alerts != nil {
		p.Alerts.Emit(ctx, &alert.Event{
			IncidentID: incidentID,
			VerdictID:  verdictID,
			Timestamp:  v.Timestamp,
			AttackType: v.Incident.AttackType,
			Severity:   v.Incident.Severity,
			Confidence: v.Confidence,
			RiskLevel:  v.RiskLevel,
			Source:     p.Source,
			Reasons:    v.AttackReasons,
		})
	}

	return RowOutcome{
		ID:               rowNum,
		Prediction:       v.Prediction,
		PredictionLabel:  v.PredictionLabel,
		RiskLevel:        v.RiskLevel,
		Confidence:       v.Confidence,
		Probabilities:    v.Probabilities,
		FeaturesReceived: v.FeaturesUsed.Count,
		DetectionMethod:  v.DetectionMethod,
		AttackReasons:    v.AttackReasons,
		DatabaseSaved:    saved,
		VerdictID:        verdictID,
	}
}

func (p *Processor) persist(ctx context.Context, v *engine.Verdict, rec feature.Record) (verdictID, incidentID string, saved bool) {
	if p.Store == nil {
		return "", "", false
	}
	verdictID, err := p.Store.SaveVerdict(ctx, v, rec, p.Source)
	if err != nil {
		log.Printf("batch: save verdict: %v", err)
		return "", "", false
	}
	if verdictID == "" {
		return "", "", false
	}

	if v.Incident != nil {
		incidentID, err = p.Store.SaveIncident(ctx, verdictID, v, p.Source)
		if err != nil {
			log.Printf("batch: save incident for verdict %s: %v", verdictID, err)
		}
	}
	return verdictID, incidentID, true
}

func errorOutcome(rowNum int, err error) RowOutcome {
	return RowOutcome{
		ID:              rowNum,
		PredictionLabel: "ERROR",
		RiskLevel:       "UNKNOWN",
		Error:           fmt.Sprintf("row processing error: %v", err),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
