package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all backtest routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/backtests", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleRun)
		r.Get("/{id}", h.HandleGet)
		r.Get("/{id}/series", h.HandleSeries)
		r.Get("/{id}/report.csv", h.HandleReportCSV)
	})
}
