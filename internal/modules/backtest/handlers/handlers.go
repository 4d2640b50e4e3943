// Package handlers provides HTTP handlers for backtest runs.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/internal/modules/backtest"
	"github.com/aristath/backtester/internal/modules/rebalancing"
	"github.com/aristath/backtester/pkg/formulas"
)

// Handler handles backtest HTTP requests
type Handler struct {
	service *backtest.Service
	log     zerolog.Logger
}

// NewHandler creates a new backtest handler
func NewHandler(service *backtest.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "backtest").Logger(),
	}
}

// RunRequest starts a backtest. Without observations the definition runs
// against the history database.
type RunRequest struct {
	Definition   backtest.Definition                  `json:"definition"`
	Observations []domain.ReturnObservation           `json:"observations,omitempty"`
	Benchmarks   map[string][]domain.LevelObservation `json:"benchmarks,omitempty"`
}

// AllocationResponse is one rebalance period in a run response.
type AllocationResponse struct {
	WindowStart    time.Time          `json:"window_start"`
	WindowEnd      time.Time          `json:"window_end"`
	EvaluationEnd  time.Time          `json:"evaluation_end"`
	EvaluationDays int                `json:"evaluation_days"`
	Weights        map[string]float64 `json:"weights"`
	Fallback       bool               `json:"fallback"`
	Warning        string             `json:"warning,omitempty"`
}

// HandleRun handles POST /api/backtests
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		run *backtest.Run
		err error
	)
	if len(req.Observations) > 0 {
		run, err = h.service.RunObservations(r.Context(), req.Definition, req.Observations, req.Benchmarks)
	} else {
		run, err = h.service.Run(r.Context(), req.Definition)
	}
	if err != nil {
		h.handleServiceError(w, err, "Backtest failed")
		return
	}

	allocations := make([]AllocationResponse, 0, len(run.Allocations))
	for _, a := range run.Allocations {
		allocations = append(allocations, AllocationResponse{
			WindowStart:    a.Period.WindowStart,
			WindowEnd:      a.Period.WindowEnd,
			EvaluationEnd:  a.Period.EvaluationEnd,
			EvaluationDays: a.EvaluationDays,
			Weights:        a.Weights.Map(),
			Fallback:       a.Fallback,
			Warning:        a.Warning,
		})
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": map[string]interface{}{
			"run":         run.Summary(),
			"allocations": allocations,
			"report":      run.Report,
		},
		"metadata": metadata(),
	})
}

// HandleList handles GET /api/backtests
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.handleServiceError(w, err, "Failed to list backtests")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"runs":  runs,
			"count": len(runs),
		},
		"metadata": metadata(),
	})
}

// HandleGet handles GET /api/backtests/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"run":        run.Summary(),
			"definition": run.Definition,
			"report":     run.Report,
		},
		"metadata": metadata(),
	})
}

// HandleSeries handles GET /api/backtests/{id}/series
func (h *Handler) HandleSeries(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"name":   run.Series.Name(),
			"points": run.Series.Points(),
		},
		"metadata": metadata(),
	})
}

// HandleReportCSV handles GET /api/backtests/{id}/report.csv
func (h *Handler) HandleReportCSV(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+run.ID+`.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := run.Report.WriteCSV(w); err != nil {
		h.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to write report CSV")
	}
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*backtest.Run, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "Missing run id")
		return nil, false
	}

	run, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "Failed to load backtest")
		return nil, false
	}
	return run, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(msg)
		h.writeError(w, status, msg)
		return
	}
	h.log.Debug().Err(err).Int("status", status).Msg(msg)
	h.writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, backtest.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, backtest.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, rebalancing.ErrNoEvaluablePeriods), errors.Is(err, formulas.ErrZeroSpan):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func metadata() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error":    msg,
		"metadata": metadata(),
	})
}
