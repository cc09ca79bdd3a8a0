// Package server exposes the classification engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/alert"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/batch"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/config"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/engine"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/feature"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/store"
)

// Server wraps the HTTP components of the NIDS service.
type Server struct {
	mux          *http.ServeMux
	cfg          *config.Config
	engine       *engine.Engine
	store        store.Store
	alerts       *alert.Emitter
	storeBackend string // "redis" or "disabled"
}

// New creates a server with all routes registered. The store may be a noop
// when persistence is disabled or unreachable; storeBackend tells health
// and stats what to report.
func New(cfg *config.Config, eng *engine.Engine, st store.Store, alerts *alert.Emitter, storeBackend string) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		cfg:          cfg,
		engine:       eng,
		store:        st,
		alerts:       alerts,
		storeBackend: storeBackend,
	}

	s.mux.HandleFunc("/api/predict", s.handlePredict)
	s.mux.HandleFunc("/api/batch-predict", s.handleBatchPredict)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/attacks", s.handleAttacks)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/test", s.handleTest)

	if cfg.Server.StaticDir != "" {
		s.mux.Handle("/", spaHandler(cfg.Server.StaticDir))
	}

	return s
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		IdleTimeout:       s.cfg.Server.IdleTimeout,
	}
	log.Printf("NIDS API listening on %s", addr)
	return srv.ListenAndServe()
}

// Shutdown releases the server's collaborators.
func (s *Server) Shutdown(ctx context.Context) {
	if s.alerts != nil {
		s.alerts.Close(ctx)
	}
	if err := s.store.Close(); err != nil {
		log.Printf("store close: %v", err)
	}
}

// withCORS answers preflight requests and marks every response as
// cross-origin accessible, matching the open-CORS posture of the API.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.store.Stats(r.Context())
	if err != nil {
		log.Printf("stats query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "statistics unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"statistics": stats,
		"database":   s.storeBackend,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

type attackRow struct {
	store.IncidentRow
	Status string `json:"status"`
}

func (s *Server) handleAttacks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rows, err := s.store.RecentIncidents(r.Context(), 50)
	if err != nil {
		log.Printf("attack query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "attack log unavailable")
		return
	}

	attacks := make([]attackRow, 0, len(rows))
	for _, row := range rows {
		status := "Monitored"
		if row.Severity == engine.RiskCritical || row.Severity == engine.RiskHigh {
			status = "Blocked"
		}
		attacks = append(attacks, attackRow{IncidentRow: row, Status: status})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"attacks": attacks,
		"count":   len(attacks),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	database := s.storeBackend
	if err := s.store.Ping(r.Context()); err != nil {
		database = "unreachable"
	}

	resp := map[string]any{
		"success":   true,
		"status":    "healthy",
		"model":     "loaded",
		"database":  database,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.alerts != nil {
		m := s.alerts.MetricsSnapshot()
		resp["alerts"] = map[string]uint64{
			"enqueued": m.Enqueued(),
			"dropped":  m.Dropped(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTest runs two built-in sample records through the engine so an
// operator can verify the full pipeline from a browser.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	samples := []struct {
		name string
		data map[string]any
	}{
		{
			name: "Normal Web Traffic",
			data: map[string]any{
				"duration": 0.1, "src_bytes": 100, "dst_bytes": 200,
				"count": 2, "srv_count": 1,
				"serror_rate": 0.001, "srv_serror_rate": 0.001,
				"dst_host_count": 10, "dst_host_srv_count": 5,
				"dst_host_serror_rate": 0.002, "dst_host_srv_serror_rate": 0.002,
			},
		},
		{
			name: "DoS Attack",
			data: map[string]any{
				"duration": 0, "src_bytes": 1000000, "dst_bytes": 0,
				"count": 1000, "srv_count": 500,
				"serror_rate": 0.98, "srv_serror_rate": 0.98,
				"dst_host_count": 255, "dst_host_srv_count": 255,
				"dst_host_serror_rate": 0.99, "dst_host_srv_serror_rate": 0.99,
			},
		},
	}

	results := make([]map[string]any, 0, len(samples))
	for _, sample := range samples {
		v, err := s.engine.Classify(r.Context(), feature.FromMap(sample.data))
		if err != nil {
			results = append(results, map[string]any{
				"name":  sample.name,
				"error": err.Error(),
			})
			continue
		}
		results = append(results, map[string]any{
			"name":               sample.name,
			"prediction":         v.PredictionLabel,
			"confidence":         v.Confidence,
			"attack_probability": v.Probabilities.Attack,
			"normal_probability": v.Probabilities.Normal,
			"features_tested":    v.FeaturesUsed.Count,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"tests":    results,
		"database": s.storeBackend,
		"model":    "loaded",
	})
}

func (s *Server) handleBatchPredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(s.cfg.Server.MaxRequestBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, "file must be a CSV")
		return
	}

	proc := &batch.Processor{
		Engine: s.engine,
		Store:  s.store,
		Alerts: s.alerts,
		Source: clientIP(r),
	}
	res, err := proc.ProcessCSV(r.Context(), file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("batch %s: %d records, %d attacks, %d errors",
		header.Filename, res.Summary.TotalRecords, res.Summary.AttackCount, res.Summary.ErrorCount)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"predictions": res.Predictions,
		"summary":     res.Summary,
		"database_status": map[string]any{
			"connected":   s.storeBackend == "redis",
			"saved_count": res.Summary.DatabaseSavedCount,
		},
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Success: false, Error: message})
}
