package performance

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/pkg/formulas"
)

// Settings configures report estimators
type Settings struct {
	PeriodsPerYear int
	RiskFreeRate   float64
	// RollingWindow is the trailing length of the rolling volatility curve; 0 disables it.
	RollingWindow int
}

// DefaultSettings returns daily annualization with the default risk-free proxy.
func DefaultSettings() Settings {
	return Settings{
		PeriodsPerYear: 250,
		RiskFreeRate:   0.0284,
		RollingWindow:  20,
	}
}

// SeriesStats holds the single-series metrics. Optional metrics are nil when
// they are undefined for the series.
type SeriesStats struct {
	Name             string    `json:"name" msgpack:"name"`
	StartDate        time.Time `json:"start_date" msgpack:"start_date"`
	EndDate          time.Time `json:"end_date" msgpack:"end_date"`
	Periods          int       `json:"periods" msgpack:"periods"`
	FinalCapital     float64   `json:"final_capital" msgpack:"final_capital"`
	AnnualizedReturn float64   `json:"annualized_return" msgpack:"annualized_return"`
	MaxDrawdown      Drawdown  `json:"max_drawdown" msgpack:"max_drawdown"`
	Volatility       *float64  `json:"volatility" msgpack:"volatility"`
	Sharpe           *float64  `json:"sharpe" msgpack:"sharpe"`
	AverageReturn    float64   `json:"average_return" msgpack:"average_return"`
	ProbabilityUp    float64   `json:"probability_up" msgpack:"probability_up"`
	Streak           Streak    `json:"streak" msgpack:"streak"`
	MaxReturn        float64   `json:"max_return" msgpack:"max_return"`
	MinReturn        float64   `json:"min_return" msgpack:"min_return"`
}

// BenchmarkReport holds a benchmark's own metrics and its relation to the portfolio.
type BenchmarkReport struct {
	SeriesStats      `msgpack:",inline"`
	Beta             *float64 `json:"beta" msgpack:"beta"`
	Alpha            *float64 `json:"alpha" msgpack:"alpha"`
	InformationRatio *float64 `json:"information_ratio" msgpack:"information_ratio"`
}

// Report is the evaluated outcome of one portfolio series.
type Report struct {
	Name              string            `json:"name" msgpack:"name"`
	RiskFreeRate      float64           `json:"risk_free_rate" msgpack:"risk_free_rate"`
	PeriodsPerYear    int               `json:"periods_per_year" msgpack:"periods_per_year"`
	Portfolio         SeriesStats       `json:"portfolio" msgpack:"portfolio"`
	Benchmarks        []BenchmarkReport `json:"benchmarks" msgpack:"benchmarks"`
	Curve             *Curve            `json:"curve,omitempty" msgpack:"curve"`
	RollingVolatility *Curve            `json:"rolling_volatility,omitempty" msgpack:"rolling_volatility"`
	Warnings          []string          `json:"warnings,omitempty" msgpack:"warnings"`
}

// Builder evaluates series into reports
type Builder struct {
	settings Settings
	log      zerolog.Logger
}

// NewBuilder creates a new report builder
func NewBuilder(settings Settings, log zerolog.Logger) *Builder {
	if settings.PeriodsPerYear <= 0 {
		settings.PeriodsPerYear = DefaultSettings().PeriodsPerYear
	}
	return &Builder{
		settings: settings,
		log:      log.With().Str("component", "report_builder").Logger(),
	}
}

// Build evaluates the portfolio and each benchmark.
//
// Invalid or misaligned input and an un-annualizable span abort the build.
// Sharpe, volatility, beta, alpha and information ratio are optional: when one
// is undefined the field stays nil and the reason is added to Warnings.
func (b *Builder) Build(name string, portfolio domain.Series, benchmarks []domain.Series) (*Report, error) {
	for _, bench := range benchmarks {
		if err := checkAligned(portfolio, bench); err != nil {
			return nil, err
		}
	}

	report := &Report{
		Name:           name,
		RiskFreeRate:   b.settings.RiskFreeRate,
		PeriodsPerYear: b.settings.PeriodsPerYear,
	}

	stats, err := b.seriesStats(report, portfolio)
	if err != nil {
		return nil, err
	}
	report.Portfolio = stats

	for _, bench := range benchmarks {
		benchStats, err := b.seriesStats(report, bench)
		if err != nil {
			return nil, err
		}
		br := BenchmarkReport{SeriesStats: benchStats}

		if beta, err := Beta(portfolio, bench); err != nil {
			report.warn(b.log, "beta", err)
		} else {
			br.Beta = &beta
			alpha := formulas.CalculateAlpha(stats.AnnualizedReturn, benchStats.AnnualizedReturn, beta, b.settings.RiskFreeRate)
			br.Alpha = &alpha
		}
		if ir, err := InformationRatio(portfolio, bench, b.settings.PeriodsPerYear); err != nil {
			report.warn(b.log, "information_ratio", err)
		} else {
			br.InformationRatio = &ir
		}
		report.Benchmarks = append(report.Benchmarks, br)
	}

	curve, err := CumulativeReturnCurve(portfolio, benchmarks...)
	if err != nil {
		return nil, err
	}
	report.Curve = curve

	if w := b.settings.RollingWindow; w > 0 {
		rolling, err := RollingVolatility(portfolio, w, b.settings.PeriodsPerYear)
		if err != nil {
			report.warn(b.log, "rolling_volatility", err)
		} else {
			report.RollingVolatility = rolling
		}
	}

	b.log.Debug().
		Str("report", name).
		Int("benchmarks", len(benchmarks)).
		Int("warnings", len(report.Warnings)).
		Msg("Report built")

	return report, nil
}

func (b *Builder) seriesStats(report *Report, s domain.Series) (SeriesStats, error) {
	annualized, err := AnnualizedReturn(s)
	if err != nil {
		return SeriesStats{}, err
	}
	dd, err := MaxDrawdown(s)
	if err != nil {
		return SeriesStats{}, err
	}
	avg, err := AverageReturn(s)
	if err != nil {
		return SeriesStats{}, err
	}
	up, err := ProbabilityUp(s)
	if err != nil {
		return SeriesStats{}, err
	}
	streak, err := MaxSuccessiveStreak(s)
	if err != nil {
		return SeriesStats{}, err
	}
	maxRet, minRet, err := Extremes(s)
	if err != nil {
		return SeriesStats{}, err
	}

	capital := s.Capital()
	stats := SeriesStats{
		Name:             s.Name(),
		StartDate:        s.First(),
		EndDate:          s.Last(),
		Periods:          s.Len(),
		FinalCapital:     capital[len(capital)-1],
		AnnualizedReturn: annualized,
		MaxDrawdown:      dd,
		AverageReturn:    avg,
		ProbabilityUp:    up,
		Streak:           streak,
		MaxReturn:        maxRet,
		MinReturn:        minRet,
	}

	vol, err := Volatility(s, b.settings.PeriodsPerYear)
	if err != nil {
		report.warn(b.log, s.Name()+" volatility", err)
		return stats, nil
	}
	stats.Volatility = &vol

	if sharpe, err := SharpeRatio(s, b.settings.PeriodsPerYear, b.settings.RiskFreeRate); err != nil {
		report.warn(b.log, s.Name()+" sharpe", err)
	} else {
		stats.Sharpe = &sharpe
	}
	return stats, nil
}

func (r *Report) warn(log zerolog.Logger, metric string, err error) {
	msg := fmt.Sprintf("%s undefined: %v", metric, err)
	r.Warnings = append(r.Warnings, msg)
	log.Warn().Err(err).Str("metric", metric).Msg("Metric undefined")
}

// Metric is one named report value. Value is nil when the metric is undefined.
type Metric struct {
	Series string   `json:"series"`
	Name   string   `json:"name"`
	Value  *float64 `json:"value"`
}

// Metrics flattens the report into ordered rows, portfolio first.
func (r *Report) Metrics() []Metric {
	var out []Metric
	add := func(series, name string, v *float64) {
		out = append(out, Metric{Series: series, Name: name, Value: v})
	}
	val := func(v float64) *float64 { return &v }

	stats := func(s SeriesStats) {
		add(s.Name, "annualized_return", val(s.AnnualizedReturn))
		add(s.Name, "max_drawdown", val(s.MaxDrawdown.Value))
		add(s.Name, "volatility", s.Volatility)
		add(s.Name, "sharpe", s.Sharpe)
		add(s.Name, "average_return", val(s.AverageReturn))
		add(s.Name, "probability_up", val(s.ProbabilityUp))
		add(s.Name, "max_up_streak", val(float64(s.Streak.Up)))
		add(s.Name, "max_down_streak", val(float64(s.Streak.Down)))
		add(s.Name, "max_return", val(s.MaxReturn))
		add(s.Name, "min_return", val(s.MinReturn))
		add(s.Name, "final_capital", val(s.FinalCapital))
	}

	stats(r.Portfolio)
	for _, b := range r.Benchmarks {
		stats(b.SeriesStats)
		add(b.Name, "beta", b.Beta)
		add(b.Name, "alpha", b.Alpha)
		add(b.Name, "information_ratio", b.InformationRatio)
	}
	return out
}

// WriteCSV writes the metrics as series,metric,value rows. Undefined values are empty.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"series", "metric", "value"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, m := range r.Metrics() {
		value := ""
		if m.Value != nil {
			value = strconv.FormatFloat(*m.Value, 'g', -1, 64)
		}
		if err := cw.Write([]string{m.Series, m.Name, value}); err != nil {
			return fmt.Errorf("failed to write %s %s: %w", m.Series, m.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
