// Package rebalancing runs a rolling monthly rebalance over a return panel.
package rebalancing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/internal/modules/optimization"
)

// ErrNoEvaluablePeriods is reported by callers when the panel holds too few
// month-ends for a single evaluation period.
var ErrNoEvaluablePeriods = errors.New("not enough history for an evaluation period")

// ErrInvalidConfig is returned for unusable rebalance settings.
var ErrInvalidConfig = errors.New("invalid rebalance config")

// PortfolioSeriesName labels the rebalanced return series.
const PortfolioSeriesName = "portfolio"

// WeightSolver computes an allocation from a window of returns.
type WeightSolver interface {
	Solve(window mat.Matrix, assets []string, objective domain.Objective) (optimization.Solution, error)
}

// Config holds rebalance settings
type Config struct {
	WindowMonths int
	Objective    domain.Objective
	BaseCapital  float64
}

// DefaultConfig returns a six-month, equal-weight rebalance starting from 1.0.
func DefaultConfig() Config {
	return Config{
		WindowMonths: 6,
		Objective:    domain.ObjectiveEqual,
		BaseCapital:  1.0,
	}
}

// Validate checks the config
func (c Config) Validate() error {
	if c.WindowMonths < 1 {
		return fmt.Errorf("%w: window months must be at least 1, got %d", ErrInvalidConfig, c.WindowMonths)
	}
	if !(c.BaseCapital > 0) || math.IsInf(c.BaseCapital, 0) {
		return fmt.Errorf("%w: base capital must be positive, got %v", ErrInvalidConfig, c.BaseCapital)
	}
	switch c.Objective {
	case domain.ObjectiveEqual, domain.ObjectiveMinVariance, domain.ObjectiveMaxSharpe:
		return nil
	}
	return fmt.Errorf("%w: %w %q", ErrInvalidConfig, domain.ErrUnknownObjective, c.Objective)
}

// Period is one rebalance step. Both ranges are open at the start and closed
// at the end: the window is (WindowStart, WindowEnd] and the evaluation period
// is (WindowEnd, EvaluationEnd].
type Period struct {
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	EvaluationEnd time.Time `json:"evaluation_end"`
}

// PeriodAllocation records what one rebalance step did.
type PeriodAllocation struct {
	Period
	WindowDays     int                 `json:"window_days"`
	EvaluationDays int                 `json:"evaluation_days"`
	Weights        domain.WeightVector `json:"weights"`
	Fallback       bool                `json:"fallback"`
	Warning        string              `json:"warning,omitempty"`
}

// Result is the output of a rebalance.
type Result struct {
	Objective    domain.Objective
	WindowMonths int
	Series       domain.Series
	Periods      []PeriodAllocation
}

// Evaluable reports whether at least one evaluation period was produced.
func (r *Result) Evaluable() bool {
	return r != nil && !r.Series.Empty()
}

// Warnings returns one message per period that fell back to equal weights.
func (r *Result) Warnings() []string {
	var out []string
	for _, p := range r.Periods {
		if p.Fallback {
			out = append(out, fmt.Sprintf("period ending %s: %s", p.EvaluationEnd.Format("2006-01-02"), p.Warning))
		}
	}
	return out
}

// Fallbacks counts periods that fell back to equal weights.
func (r *Result) Fallbacks() int {
	n := 0
	for _, p := range r.Periods {
		if p.Fallback {
			n++
		}
	}
	return n
}

// Rebalancer drives a WeightSolver over successive monthly windows
type Rebalancer struct {
	solver WeightSolver
	log    zerolog.Logger
}

// NewRebalancer creates a new rebalancer
func NewRebalancer(solver WeightSolver, log zerolog.Logger) *Rebalancer {
	return &Rebalancer{
		solver: solver,
		log:    log.With().Str("component", "rebalancer").Logger(),
	}
}

// Rebalance computes the portfolio return series.
//
// With month-end boundaries b, for i in [w, len(b)-2] the weights solved on the
// window (b[i-w], b[i]] are held over (b[i], b[i+1]]. Each trading day after
// b[w] up to the last month-end lands in exactly one evaluation period. Days
// after the last month-end in the panel are never evaluated.
//
// Fewer than w+2 month-ends yields a Result that is not Evaluable; that is not
// an error.
func (r *Rebalancer) Rebalance(panel *Panel, cfg Config) (*Result, error) {
	if panel == nil || panel.Len() == 0 {
		return nil, ErrEmptyPanel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	result := &Result{Objective: cfg.Objective, WindowMonths: cfg.WindowMonths}
	assets := panel.Assets()
	ends := monthEndIndices(panel.dates)
	w := cfg.WindowMonths

	if len(ends) < w+2 {
		r.log.Info().
			Int("month_ends", len(ends)).
			Int("window_months", w).
			Msg("Not enough month-ends for an evaluation period")
		empty, err := domain.NewSeries(PortfolioSeriesName, nil, nil, cfg.BaseCapital)
		if err != nil {
			return nil, err
		}
		result.Series = empty
		return result, nil
	}

	var (
		dates   []time.Time
		returns []float64
	)
	for i := w; i <= len(ends)-2; i++ {
		windowFrom, windowTo := ends[i-w]+1, ends[i]+1
		evalFrom, evalTo := ends[i]+1, ends[i+1]+1

		solution, err := r.solver.Solve(panel.Window(windowFrom, windowTo), assets, cfg.Objective)
		if err != nil {
			return nil, fmt.Errorf("failed to solve window ending %s: %w",
				panel.dates[ends[i]].Format("2006-01-02"), err)
		}

		weights := solution.Weights.Weights
		for t := evalFrom; t < evalTo; t++ {
			dates = append(dates, panel.dates[t])
			returns = append(returns, floats.Dot(weights, panel.data.RawRowView(t)))
		}

		alloc := PeriodAllocation{
			Period: Period{
				WindowStart:   panel.dates[ends[i-w]],
				WindowEnd:     panel.dates[ends[i]],
				EvaluationEnd: panel.dates[ends[i+1]],
			},
			WindowDays:     windowTo - windowFrom,
			EvaluationDays: evalTo - evalFrom,
			Weights:        solution.Weights,
			Fallback:       solution.Fallback,
			Warning:        solution.Warning,
		}
		result.Periods = append(result.Periods, alloc)

		r.log.Debug().
			Time("window_end", alloc.WindowEnd).
			Time("evaluation_end", alloc.EvaluationEnd).
			Int("window_days", alloc.WindowDays).
			Int("evaluation_days", alloc.EvaluationDays).
			Bool("fallback", alloc.Fallback).
			Msg("Rebalanced")
	}

	series, err := domain.NewSeries(PortfolioSeriesName, dates, returns, cfg.BaseCapital)
	if err != nil {
		return nil, fmt.Errorf("failed to build portfolio series: %w", err)
	}
	result.Series = series

	r.log.Info().
		Str("objective", cfg.Objective.String()).
		Int("periods", len(result.Periods)).
		Int("days", series.Len()).
		Int("fallbacks", result.Fallbacks()).
		Msg("Rebalance complete")

	return result, nil
}
