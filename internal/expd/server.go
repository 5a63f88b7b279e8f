package expd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adaptivelab/experiment-core/internal/generator"
	"github.com/adaptivelab/experiment-core/internal/history"
	"github.com/adaptivelab/experiment-core/internal/model"
	"github.com/adaptivelab/experiment-core/internal/record"
	"github.com/adaptivelab/experiment-core/internal/strategy"
	"github.com/adaptivelab/experiment-core/pkg/config"
	"github.com/adaptivelab/experiment-core/pkg/logger"
)

// HTTPServer exposes the ask/tell engine over HTTP. hist may be nil, in
// which case nothing is persisted.
type HTTPServer struct {
	mux   *http.ServeMux
	store *ExperimentStore
	hist  *history.Store
}

func NewHTTPServer(store *ExperimentStore, hist *history.Store) *HTTPServer {
	s := &HTTPServer{
		mux:   http.NewServeMux(),
		store: store,
		hist:  hist,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/experiments", s.handleExperiments)
	s.mux.HandleFunc("/v1/experiments/", s.handleExperimentByID)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleExperiments handles /v1/experiments
func (s *HTTPServer) handleExperiments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateExperiment(w, r)
	case http.MethodGet:
		s.handleListExperiments(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleExperimentByID handles /v1/experiments/{id} and related endpoints
func (s *HTTPServer) handleExperimentByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/experiments/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "experiment ID is required")
		return
	}

	if strings.HasSuffix(path, ":ask") {
		id := strings.TrimSuffix(path, ":ask")
		if r.Method == http.MethodPost {
			s.handleAsk(w, r, id)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.HasSuffix(path, ":tell") {
		id := strings.TrimSuffix(path, ":tell")
		if r.Method == http.MethodPost {
			s.handleTell(w, r, id)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.HasSuffix(path, "/metrics") {
		id := strings.TrimSuffix(path, "/metrics")
		if r.Method == http.MethodGet {
			s.handleExperimentMetrics(w, r, id)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.HasSuffix(path, "/replay") {
		id := strings.TrimSuffix(path, "/replay")
		if r.Method == http.MethodGet {
			s.handleReplay(w, r, id)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if r.Method == http.MethodGet {
		s.handleGetExperiment(w, r, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateExperiment handles POST /v1/experiments
func (s *HTTPServer) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExperimentID string `json:"experiment_id,omitempty"`
		ConfigYAML   string `json:"config_yaml"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ConfigYAML == "" {
		s.writeError(w, http.StatusBadRequest, "config_yaml is required")
		return
	}

	exp, err := config.ParseExperimentYAML([]byte(req.ConfigYAML))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	seq, err := strategy.BuildSequencer(exp, nil)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.store.Create(req.ExperimentID, exp.Name, []byte(req.ConfigYAML), seq)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			s.writeError(w, http.StatusConflict, err.Error())
		} else {
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if s.hist != nil {
		if err := s.hist.SaveExperiment(rec.ID, rec.Name, rec.ConfigYAML); err != nil {
			logger.Error("failed to persist experiment", "experiment_id", rec.ID, "error", err)
		}
	}

	logger.Info("experiment created", "experiment_id", rec.ID, "name", rec.Name)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"experiment": convertExperimentToJSON(rec),
	})
}

// handleListExperiments handles GET /v1/experiments
func (s *HTTPServer) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, 1000)
		}
	}

	recs := s.store.List(limit)
	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, convertExperimentToJSON(rec))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"experiments": out,
		"count":       len(out),
	})
}

// handleGetExperiment handles GET /v1/experiments/{id}
func (s *HTTPServer) handleGetExperiment(w http.ResponseWriter, _ *http.Request, id string) {
	rec, ok := s.store.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "experiment not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"experiment": convertExperimentToJSON(rec),
	})
}

// handleAsk handles POST /v1/experiments/{id}:ask
func (s *HTTPServer) handleAsk(w http.ResponseWriter, r *http.Request, id string) {
	rec, ok := s.store.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "experiment not found")
		return
	}

	trial, err := rec.Sequencer.Ask(r.Context())
	if err != nil {
		var exhausted *strategy.SequenceExhaustedError
		var timeout *generator.GenerationTimeoutError
		var fit *model.FitError
		switch {
		case errors.As(err, &exhausted):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &timeout):
			s.writeError(w, http.StatusGatewayTimeout, err.Error())
		case errors.As(err, &fit):
			s.writeError(w, http.StatusPreconditionFailed, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	strategyName := activeStrategyName(rec.Sequencer)
	if s.hist != nil {
		if err := s.hist.SaveTrial(rec.ID, trial, strategyName); err != nil {
			logger.Error("failed to persist trial", "experiment_id", rec.ID, "trial_id", trial.ID, "error", err)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"trial_id": trial.ID,
		"strategy": strategyName,
		"stimuli":  trial.Stimuli,
	})
}

// handleTell handles POST /v1/experiments/{id}:tell
func (s *HTTPServer) handleTell(w http.ResponseWriter, r *http.Request, id string) {
	rec, ok := s.store.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "experiment not found")
		return
	}

	var req struct {
		TrialID int64     `json:"trial_id"`
		Outcome []float64 `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := rec.Sequencer.Tell(req.TrialID, req.Outcome); err != nil {
		var unknown *record.UnknownTrialError
		var dup *record.DuplicateOutcomeError
		var shape *record.ShapeError
		switch {
		case errors.As(err, &unknown):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.As(err, &dup):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &shape):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if s.hist != nil {
		if err := s.hist.SaveOutcome(rec.ID, req.TrialID, req.Outcome); err != nil {
			logger.Error("failed to persist outcome", "experiment_id", rec.ID, "trial_id", req.TrialID, "error", err)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"trial_id": req.TrialID,
		"status":   rec.Sequencer.Status(),
	})
}

// handleExperimentMetrics handles GET /v1/experiments/{id}/metrics
func (s *HTTPServer) handleExperimentMetrics(w http.ResponseWriter, _ *http.Request, id string) {
	rec, ok := s.store.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "experiment not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"experiment_id": rec.ID,
		"metrics":       rec.Sequencer.Metrics().Summarize(),
	})
}

// handleReplay handles GET /v1/experiments/{id}/replay
func (s *HTTPServer) handleReplay(w http.ResponseWriter, _ *http.Request, id string) {
	if s.hist == nil {
		s.writeError(w, http.StatusPreconditionFailed, "history persistence is disabled")
		return
	}
	if _, ok := s.store.Get(id); !ok {
		s.writeError(w, http.StatusNotFound, "experiment not found")
		return
	}

	entries, err := s.hist.Replay(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		entry := map[string]any{
			"trial_id": e.TrialID,
			"strategy": e.Strategy,
			"stimuli":  e.Stimuli,
		}
		if e.Outcome != nil {
			entry["outcome"] = e.Outcome
		}
		out = append(out, entry)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"experiment_id": id,
		"entries":       out,
	})
}

// activeStrategyName reports which strategy is currently serving asks
func activeStrategyName(seq *strategy.Sequencer) string {
	st := seq.Status()
	if st.ActiveIndex < len(st.Strategies) {
		return st.Strategies[st.ActiveIndex].Name
	}
	if len(st.Strategies) > 0 {
		return st.Strategies[len(st.Strategies)-1].Name
	}
	return ""
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

func convertExperimentToJSON(rec *ExperimentRecord) map[string]any {
	return map[string]any{
		"id":                 rec.ID,
		"name":               rec.Name,
		"created_at_unix_ms": rec.CreatedAtUnixMs,
		"status":             rec.Sequencer.Status(),
	}
}
