package performance

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/pkg/formulas"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func consecutiveDays(from time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = from.AddDate(0, 0, i)
	}
	return out
}

func mustSeries(t *testing.T, name string, dates []time.Time, returns []float64) domain.Series {
	t.Helper()
	s, err := domain.NewSeries(name, dates, returns, 1)
	require.NoError(t, err)
	return s
}

func randomReturns(seed int64, n int, vol float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.0004 + rng.NormFloat64()*vol
	}
	return out
}

func TestMaxDrawdown_PeakAndTroughDates(t *testing.T) {
	dates := consecutiveDays(date(2024, 1, 1), 5)
	capital := []float64{100, 110, 90, 95, 130}
	returns := []float64{0, 0.1, 90.0/110 - 1, 95.0/90 - 1, 130.0/95 - 1}

	s, err := domain.NewLevelSeries("portfolio", dates, returns, capital)
	require.NoError(t, err)

	dd, err := MaxDrawdown(s)
	require.NoError(t, err)
	assert.InDelta(t, 90.0/110-1, dd.Value, 1e-12)
	assert.Equal(t, dates[1], dd.PeakDate)
	assert.Equal(t, dates[2], dd.TroughDate)

	// no point between peak and trough exceeds the peak
	for i, d := range dates {
		if d.After(dd.PeakDate) && d.Before(dd.TroughDate) {
			assert.LessOrEqual(t, capital[i], capital[1])
		}
	}
}

func TestAnnualizedReturn(t *testing.T) {
	dates := []time.Time{date(2023, 1, 1), date(2023, 12, 31)}
	s, err := domain.NewLevelSeries("p", dates, []float64{0, 0.1}, []float64{100, 110})
	require.NoError(t, err)

	// 365 inclusive days: one full year
	r, err := AnnualizedReturn(s)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, r, 1e-12)

	single := mustSeries(t, "p", []time.Time{date(2023, 1, 1)}, []float64{0.01})
	_, err = AnnualizedReturn(single)
	assert.True(t, errors.Is(err, formulas.ErrZeroSpan))

	empty := mustSeries(t, "p", nil, nil)
	_, err = AnnualizedReturn(empty)
	assert.True(t, errors.Is(err, formulas.ErrEmptySeries))
}

func TestIdenticalBenchmark(t *testing.T) {
	dates := consecutiveDays(date(2024, 1, 1), 60)
	returns := randomReturns(11, 60, 0.01)
	portfolio := mustSeries(t, "portfolio", dates, returns)
	benchmark := portfolio.Rename("index")

	beta, err := Beta(portfolio, benchmark)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, beta, 1e-12)

	alpha, err := Alpha(portfolio, benchmark, 0.0284)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, alpha, 1e-12)

	_, err = InformationRatio(portfolio, benchmark, 250)
	assert.True(t, errors.Is(err, formulas.ErrZeroTrackingError))
}

func TestDegenerateDenominators(t *testing.T) {
	dates := consecutiveDays(date(2024, 1, 1), 10)
	flat := mustSeries(t, "flat", dates, make([]float64, 10))
	moving := mustSeries(t, "moving", dates, randomReturns(2, 10, 0.01))

	_, err := SharpeRatio(flat, 250, 0.0284)
	assert.True(t, errors.Is(err, formulas.ErrZeroVolatility))

	_, err = Beta(moving, flat)
	assert.True(t, errors.Is(err, formulas.ErrZeroVariance))
}

func TestMisalignedSeries(t *testing.T) {
	a := mustSeries(t, "a", consecutiveDays(date(2024, 1, 1), 5), randomReturns(1, 5, 0.01))
	b := mustSeries(t, "b", consecutiveDays(date(2024, 1, 2), 5), randomReturns(2, 5, 0.01))
	c := mustSeries(t, "c", consecutiveDays(date(2024, 1, 1), 4), randomReturns(3, 4, 0.01))

	_, err := Beta(a, b)
	assert.True(t, errors.Is(err, ErrMisaligned))
	_, err = InformationRatio(a, c, 250)
	assert.True(t, errors.Is(err, ErrMisaligned))
	_, err = CumulativeReturnCurve(a, b)
	assert.True(t, errors.Is(err, ErrMisaligned))
}

func TestSimpleEstimators(t *testing.T) {
	dates := consecutiveDays(date(2024, 1, 1), 7)
	s := mustSeries(t, "p", dates, []float64{0.01, 0, 0.02, -0.01, 0, -0.03, 0.04})

	avg, err := AverageReturn(s)
	require.NoError(t, err)
	assert.InDelta(t, 0.03/7, avg, 1e-12)

	up, err := ProbabilityUp(s)
	require.NoError(t, err)
	assert.InDelta(t, 3.0/7, up, 1e-12)

	streak, err := MaxSuccessiveStreak(s)
	require.NoError(t, err)
	assert.Equal(t, Streak{Up: 3, Down: 3}, streak)

	maxRet, minRet, err := Extremes(s)
	require.NoError(t, err)
	assert.Equal(t, 0.04, maxRet)
	assert.Equal(t, -0.03, minRet)
}

func TestCumulativeReturnCurve(t *testing.T) {
	dates := consecutiveDays(date(2024, 1, 1), 3)
	p := mustSeries(t, "portfolio", dates, []float64{0.5, 0.1, -0.5})
	b, err := domain.NewLevelSeries("index", dates, []float64{0, 0.2, 0}, []float64{50, 60, 60})
	require.NoError(t, err)

	curve, err := CumulativeReturnCurve(p, b)
	require.NoError(t, err)

	assert.Equal(t, dates, curve.Dates)
	require.Len(t, curve.Lines, 2)
	assert.Equal(t, "portfolio", curve.Lines[0].Name)
	assert.InDeltaSlice(t, []float64{0, 0.1, -0.45}, curve.Lines[0].Values, 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0.2, 0.2}, curve.Lines[1].Values, 1e-12)
}

func TestRollingVolatilityCurve(t *testing.T) {
	dates := consecutiveDays(date(2024, 1, 1), 30)
	s := mustSeries(t, "p", dates, randomReturns(4, 30, 0.01))

	curve, err := RollingVolatility(s, 20, 250)
	require.NoError(t, err)
	require.Len(t, curve.Dates, 11)
	assert.Equal(t, dates[19], curve.Dates[0])
	for _, v := range curve.Lines[0].Values {
		assert.Greater(t, v, 0.0)
	}

	_, err = RollingVolatility(s, 40, 250)
	assert.True(t, errors.Is(err, formulas.ErrInsufficientData))
}

func TestAlignBenchmark(t *testing.T) {
	levels := []domain.LevelObservation{
		{Date: date(2024, 1, 4), Level: 105, Return: 0.05},
		{Date: date(2024, 1, 2), Level: 100, Return: 0.01},
		{Date: date(2024, 1, 8), Level: 110, Return: 0.02},
	}
	dates := []time.Time{date(2024, 1, 2), date(2024, 1, 3), date(2024, 1, 4), date(2024, 1, 5)}

	s, err := AlignBenchmark("index", levels, dates)
	require.NoError(t, err)

	assert.Equal(t, []float64{100, 100, 105, 105}, s.Capital())
	assert.InDeltaSlice(t, []float64{0.01, 0, 0.05, 0}, s.Returns(), 1e-12)

	_, err = AlignBenchmark("index", levels, []time.Time{date(2024, 1, 1)})
	assert.True(t, errors.Is(err, ErrNoBenchmarkLevel))

	dup := append(levels, domain.LevelObservation{Date: date(2024, 1, 2), Level: 99})
	_, err = AlignBenchmark("index", dup, dates)
	assert.True(t, errors.Is(err, domain.ErrInvalidSeries))
}

func TestBuilder_Build(t *testing.T) {
	dates := consecutiveDays(date(2024, 1, 1), 90)
	portfolio := mustSeries(t, "portfolio", dates, randomReturns(21, 90, 0.01))
	index := mustSeries(t, "index", dates, randomReturns(22, 90, 0.008))
	clone := portfolio.Rename("clone")

	builder := NewBuilder(DefaultSettings(), zerolog.Nop())
	report, err := builder.Build("test", portfolio, []domain.Series{index, clone})
	require.NoError(t, err)

	assert.Equal(t, "portfolio", report.Portfolio.Name)
	assert.Equal(t, 90, report.Portfolio.Periods)
	require.NotNil(t, report.Portfolio.Volatility)
	require.NotNil(t, report.Portfolio.Sharpe)
	assert.LessOrEqual(t, report.Portfolio.MaxDrawdown.Value, 0.0)

	require.Len(t, report.Benchmarks, 2)
	assert.NotNil(t, report.Benchmarks[0].Beta)
	assert.NotNil(t, report.Benchmarks[0].InformationRatio)

	clonedReport := report.Benchmarks[1]
	require.NotNil(t, clonedReport.Beta)
	assert.InDelta(t, 1.0, *clonedReport.Beta, 1e-12)
	assert.InDelta(t, 0.0, *clonedReport.Alpha, 1e-12)
	assert.Nil(t, clonedReport.InformationRatio)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "information_ratio")

	require.Len(t, report.Curve.Lines, 3)
	require.NotNil(t, report.RollingVolatility)
	assert.Len(t, report.RollingVolatility.Dates, 71)
}

func TestBuilder_AbortsOnInvalidInput(t *testing.T) {
	builder := NewBuilder(DefaultSettings(), zerolog.Nop())

	single := mustSeries(t, "portfolio", []time.Time{date(2024, 1, 1)}, []float64{0.01})
	_, err := builder.Build("single", single, nil)
	assert.True(t, errors.Is(err, formulas.ErrZeroSpan))

	a := mustSeries(t, "portfolio", consecutiveDays(date(2024, 1, 1), 5), randomReturns(1, 5, 0.01))
	b := mustSeries(t, "index", consecutiveDays(date(2024, 2, 1), 5), randomReturns(2, 5, 0.01))
	_, err = builder.Build("misaligned", a, []domain.Series{b})
	assert.True(t, errors.Is(err, ErrMisaligned))
}

func TestReport_MetricsAndCSV(t *testing.T) {
	dates := consecutiveDays(date(2024, 1, 1), 10)
	flat := mustSeries(t, "portfolio", dates, make([]float64, 10))

	report, err := NewBuilder(Settings{PeriodsPerYear: 250}, zerolog.Nop()).Build("flat", flat, nil)
	require.NoError(t, err)

	metrics := report.Metrics()
	require.NotEmpty(t, metrics)
	assert.Equal(t, "annualized_return", metrics[0].Name)

	var sharpe *Metric
	for i := range metrics {
		if metrics[i].Name == "sharpe" {
			sharpe = &metrics[i]
		}
	}
	require.NotNil(t, sharpe)
	assert.Nil(t, sharpe.Value)
	assert.Nil(t, report.RollingVolatility)

	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "series,metric,value", lines[0])
	assert.Contains(t, lines, "portfolio,annualized_return,0")
	assert.Contains(t, lines, "portfolio,sharpe,")
	assert.Len(t, lines, len(metrics)+1)
}
