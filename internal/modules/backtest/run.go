package backtest

import (
	"time"

	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/internal/modules/performance"
	"github.com/aristath/backtester/internal/modules/rebalancing"
)

// Run is one completed backtest.
type Run struct {
	ID         string
	Definition Definition
	CreatedAt  time.Time
	// Allocations are only held for the run that produced them; stored runs
	// come back without them.
	Allocations []rebalancing.PeriodAllocation
	// Fallbacks is the stored fallback count, used when Allocations is empty.
	Fallbacks int
	Series    domain.Series
	Report    *performance.Report
}

// Summary condenses the run for listings.
func (r *Run) Summary() RunSummary {
	s := RunSummary{
		ID:           r.ID,
		Name:         r.Definition.Name,
		Objective:    r.Definition.Objective,
		WindowMonths: r.Definition.WindowMonths,
		CreatedAt:    r.CreatedAt,
		Periods:      r.Series.Len(),
	}
	if r.Report != nil {
		s.Warnings = len(r.Report.Warnings)
		s.AnnualizedReturn = r.Report.Portfolio.AnnualizedReturn
		s.MaxDrawdown = r.Report.Portfolio.MaxDrawdown.Value
		s.Sharpe = r.Report.Portfolio.Sharpe
	}
	if len(r.Allocations) == 0 {
		s.Fallbacks = r.Fallbacks
	}
	for _, a := range r.Allocations {
		if a.Fallback {
			s.Fallbacks++
		}
	}
	return s
}

// RunSummary is the listing view of a run.
type RunSummary struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Objective        domain.Objective `json:"objective"`
	WindowMonths     int              `json:"window_months"`
	CreatedAt        time.Time        `json:"created_at"`
	Periods          int              `json:"periods"`
	Fallbacks        int              `json:"fallbacks"`
	Warnings         int              `json:"warnings"`
	AnnualizedReturn float64          `json:"annualized_return"`
	MaxDrawdown      float64          `json:"max_drawdown"`
	Sharpe           *float64         `json:"sharpe"`
}
