package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/internal/modules/performance"
	"github.com/aristath/backtester/internal/modules/rebalancing"
)

// HistorySource provides stored returns and benchmark levels.
type HistorySource interface {
	LoadObservations(ctx context.Context, assets []string, from, to time.Time) ([]domain.ReturnObservation, error)
	LoadBenchmark(ctx context.Context, benchmarkID string, dates []time.Time) (domain.Series, error)
}

// RunStore persists completed runs.
type RunStore interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]RunSummary, error)
}

// Service runs backtests
type Service struct {
	history    HistorySource
	runs       RunStore
	rebalancer *rebalancing.Rebalancer
	builder    *performance.Builder
	publisher  Publisher
	metrics    *Metrics
	defaults   Defaults
	now        func() time.Time
	log        zerolog.Logger
}

// NewService creates a new backtest service. publisher and metrics may be nil.
func NewService(
	history HistorySource,
	runs RunStore,
	rebalancer *rebalancing.Rebalancer,
	builder *performance.Builder,
	publisher Publisher,
	metrics *Metrics,
	defaults Defaults,
	log zerolog.Logger,
) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Service{
		history:    history,
		runs:       runs,
		rebalancer: rebalancer,
		builder:    builder,
		publisher:  publisher,
		metrics:    metrics,
		defaults:   defaults,
		now:        time.Now,
		log:        log.With().Str("component", "backtest_service").Logger(),
	}
}

// Run executes a definition against the history database.
func (s *Service) Run(ctx context.Context, def Definition) (*Run, error) {
	def, err := s.prepare(def)
	if err != nil {
		return nil, err
	}
	from, to, _ := def.Range()

	observations, err := s.history.LoadObservations(ctx, def.Assets, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	return s.execute(ctx, def, observations, func(id string, dates []time.Time) (domain.Series, error) {
		return s.history.LoadBenchmark(ctx, id, dates)
	})
}

// RunObservations executes a definition on caller-supplied data. Benchmarks
// named by the definition are looked up in levels by id.
func (s *Service) RunObservations(
	ctx context.Context,
	def Definition,
	observations []domain.ReturnObservation,
	levels map[string][]domain.LevelObservation,
) (*Run, error) {
	def, err := s.prepare(def)
	if err != nil {
		return nil, err
	}

	// Benchmarks supplied without being named are evaluated too.
	named := make(map[string]bool, len(def.Benchmarks))
	for _, b := range def.Benchmarks {
		named[b] = true
	}
	var extra []string
	for id := range levels {
		if !named[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	def.Benchmarks = append(append([]string(nil), def.Benchmarks...), extra...)

	return s.execute(ctx, def, filterObservations(def, observations), func(id string, dates []time.Time) (domain.Series, error) {
		l, ok := levels[id]
		if !ok {
			return domain.Series{}, fmt.Errorf("%w: no levels supplied for benchmark %s", ErrInvalidInput, id)
		}
		return performance.AlignBenchmark(id, l, dates)
	})
}

// Get returns a stored run.
func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	return s.runs.Get(ctx, id)
}

// List returns recent stored runs.
func (s *Service) List(ctx context.Context, limit int) ([]RunSummary, error) {
	return s.runs.List(ctx, limit)
}

func (s *Service) prepare(def Definition) (Definition, error) {
	def, err := def.withDefaults(s.defaults)
	if err != nil {
		return def, err
	}
	if err := def.Validate(); err != nil {
		return def, err
	}
	return def, nil
}

type benchmarkLoader func(id string, dates []time.Time) (domain.Series, error)

func (s *Service) execute(ctx context.Context, def Definition, observations []domain.ReturnObservation, loadBenchmark benchmarkLoader) (run *Run, err error) {
	start := s.now()
	objective := string(def.Objective)
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.RunsTotal.WithLabelValues(objective, status).Inc()
	}()

	panel, err := rebalancing.NewPanel(observations)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	result, err := s.rebalancer.Rebalance(panel, rebalancing.Config{
		WindowMonths: def.WindowMonths,
		Objective:    def.Objective,
		BaseCapital:  def.BaseCapital,
	})
	if err != nil {
		return nil, fmt.Errorf("rebalance %s: %w", def.Name, err)
	}
	if fallbacks := result.Fallbacks(); fallbacks > 0 {
		s.metrics.OptimizerFallback.WithLabelValues(objective).Add(float64(fallbacks))
	}
	if !result.Evaluable() {
		return nil, fmt.Errorf("%w: %s has %d month-ends, window of %d months needs %d",
			rebalancing.ErrNoEvaluablePeriods, def.Name,
			len(rebalancing.MonthEnds(panel.Dates())), def.WindowMonths, def.WindowMonths+2)
	}

	dates := result.Series.Dates()
	benchmarks := make([]domain.Series, 0, len(def.Benchmarks))
	for _, id := range def.Benchmarks {
		b, err := loadBenchmark(id, dates)
		if err != nil {
			return nil, fmt.Errorf("%w: benchmark %s: %w", ErrInvalidInput, id, err)
		}
		benchmarks = append(benchmarks, b)
	}

	report, err := s.builder.Build(def.Name, result.Series, benchmarks)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", def.Name, err)
	}
	report.Warnings = append(result.Warnings(), report.Warnings...)

	run = &Run{
		ID:          uuid.NewString(),
		Definition:  def,
		CreatedAt:   start.UTC(),
		Allocations: result.Periods,
		Series:      result.Series,
		Report:      report,
	}

	if err := s.runs.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to store run: %w", err)
	}

	if err := s.publisher.Publish(ctx, run); err != nil {
		s.metrics.PublishErrors.Inc()
		s.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to publish report")
	}

	elapsed := s.now().Sub(start)
	s.metrics.RunDuration.WithLabelValues(objective).Observe(elapsed.Seconds())
	s.log.Info().
		Str("run_id", run.ID).
		Str("name", def.Name).
		Str("objective", objective).
		Int("periods", len(result.Periods)).
		Int("fallbacks", result.Fallbacks()).
		Float64("annualized_return", report.Portfolio.AnnualizedReturn).
		Dur("elapsed", elapsed).
		Msg("Backtest complete")

	return run, nil
}

// filterObservations keeps the definition's assets (all when none are listed)
// within its date range.
func filterObservations(def Definition, observations []domain.ReturnObservation) []domain.ReturnObservation {
	from, to, _ := def.Range()
	keep := make(map[string]bool, len(def.Assets))
	for _, a := range def.Assets {
		keep[a] = true
	}

	out := make([]domain.ReturnObservation, 0, len(observations))
	for _, obs := range observations {
		if len(keep) > 0 && !keep[obs.AssetID] {
			continue
		}
		day := domain.Day(obs.Date)
		if (!from.IsZero() && day.Before(from)) || (!to.IsZero() && day.After(to)) {
			continue
		}
		out = append(out, obs)
	}
	return out
}
