package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/alert"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/engine"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/feature"
)

// predictResponse is the verdict envelope plus persistence status.
type predictResponse struct {
	Success bool `json:"success"`
	*engine.Verdict
	DatabaseSaved bool   `json:"database_saved"`
	VerdictID     string `json:"verdict_id,omitempty"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxRequestBodyBytes)

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "no data provided")
		return
	}

	// Missing required features are a client error; the engine is never
	// consulted for an incomplete record.
	if missing := feature.Missing(raw); len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success":           false,
			"error":             fmt.Sprintf("missing required features: %v", missing),
			"required_features": feature.Required,
		})
		return
	}

	rec := feature.FromMap(raw)

	v, err := s.engine.Classify(r.Context(), rec)
	if err != nil {
		log.Printf("predict: %v", err)
		writeError(w, http.StatusInternalServerError, "traffic scoring failed")
		return
	}

	source := clientIP(r)
	verdictID, incidentID, saved := s.persist(r, v, rec, source)

	if v.Incident != nil && s.alerts != nil {
		s.alerts.Emit(r.Context(), &alert.Event{
			IncidentID: incidentID,
			VerdictID:  verdictID,
			Timestamp:  v.Timestamp,
			AttackType: v.Incident.AttackType,
			Severity:   v.Incident.Severity,
			Confidence: v.Confidence,
			RiskLevel:  v.RiskLevel,
			Source:     source,
			Reasons:    v.AttackReasons,
		})
	}

	log.Printf("predict: %s (%.2f%%) via %s", v.PredictionLabel, v.Confidence, v.DetectionMethod)

	writeJSON(w, http.StatusOK, predictResponse{
		Success:       true,
		Verdict:       v,
		DatabaseSaved: saved,
		VerdictID:     verdictID,
	})
}

// persist writes the verdict (and incident, if any) to the store. Failures
// are logged and reported via the saved flag; they never fail the request.
func (s *Server) persist(r *http.Request, v *engine.Verdict, rec feature.Record, source string) (verdictID, incidentID string, saved bool) {
	verdictID, err := s.store.SaveVerdict(r.Context(), v, rec, source)
	if err != nil {
		log.Printf("predict: save verdict: %v", err)
		return "", "", false
	}
	if verdictID == "" {
		return "", "", false
	}
	if v.Incident != nil {
		incidentID, err = s.store.SaveIncident(r.Context(), verdictID, v, source)
		if err != nil {
			log.Printf("predict: save incident for verdict %s: %v", verdictID, err)
		}
	}
	return verdictID, incidentID, true
}
