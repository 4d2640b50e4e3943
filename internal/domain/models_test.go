package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseObjective(t *testing.T) {
	tests := []struct {
		in   string
		want Objective
	}{
		{"", ObjectiveEqual},
		{"EQUAL", ObjectiveEqual},
		{"average_w", ObjectiveEqual},
		{"MIN_VARIANCE", ObjectiveMinVariance},
		{"min_var", ObjectiveMinVariance},
		{"max_sharpe", ObjectiveMaxSharpe},
		{" Max_Sharpe ", ObjectiveMaxSharpe},
	}
	for _, tt := range tests {
		got, err := ParseObjective(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseObjective("risk_parity")
	assert.True(t, errors.Is(err, ErrUnknownObjective))
}

func TestEqualWeights(t *testing.T) {
	v := EqualWeights([]string{"A", "B", "C", "D"})
	for _, w := range v.Weights {
		assert.InDelta(t, 0.25, w, 1e-12)
	}
	assert.True(t, v.Valid(1e-9))
	assert.InDelta(t, 0.25, v.Get("C"), 1e-12)
	assert.Equal(t, 0.0, v.Get("Z"))

	single := EqualWeights([]string{"A"})
	assert.Equal(t, []float64{1.0}, single.Weights)
}

func TestWeightVector_Valid(t *testing.T) {
	v, err := NewWeightVector([]string{"A", "B"}, []float64{0.7, 0.3})
	require.NoError(t, err)
	assert.True(t, v.Valid(1e-9))
	assert.Equal(t, map[string]float64{"A": 0.7, "B": 0.3}, v.Map())

	bad, err := NewWeightVector([]string{"A", "B"}, []float64{1.2, -0.2})
	require.NoError(t, err)
	assert.False(t, bad.Valid(1e-9))

	_, err = NewWeightVector([]string{"A"}, []float64{0.5, 0.5})
	assert.Error(t, err)
}

func TestNewSeries_CapitalLine(t *testing.T) {
	dates := []time.Time{day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4), day(2024, 1, 5)}
	returns := []float64{0.05, 0.10, -0.20, 0.01}

	s, err := NewSeries("portfolio", dates, returns, 100)
	require.NoError(t, err)
	require.Equal(t, 4, s.Len())

	capital := s.Capital()
	assert.Equal(t, 100.0, capital[0])
	for i := 1; i < len(capital); i++ {
		assert.InDelta(t, capital[i-1]*(1+returns[i]), capital[i], 1e-12)
	}
}

func TestNewSeries_CopiesInputs(t *testing.T) {
	dates := []time.Time{day(2024, 1, 2), day(2024, 1, 3)}
	returns := []float64{0.01, 0.02}

	s, err := NewSeries("p", dates, returns, 1)
	require.NoError(t, err)

	returns[1] = 99
	dates[0] = day(1999, 1, 1)
	assert.Equal(t, 0.02, s.Returns()[1])
	assert.Equal(t, day(2024, 1, 2), s.First())

	got := s.Returns()
	got[0] = 42
	assert.Equal(t, 0.01, s.Returns()[0])
}

func TestNewSeries_Invalid(t *testing.T) {
	_, err := NewSeries("p", []time.Time{day(2024, 1, 3), day(2024, 1, 2)}, []float64{0, 0}, 1)
	assert.True(t, errors.Is(err, ErrInvalidSeries))

	_, err = NewSeries("p", []time.Time{day(2024, 1, 2)}, []float64{0, 0}, 1)
	assert.True(t, errors.Is(err, ErrInvalidSeries))

	_, err = NewSeries("p", []time.Time{day(2024, 1, 2)}, []float64{math.NaN()}, 1)
	assert.True(t, errors.Is(err, ErrInvalidSeries))

	_, err = NewSeries("p", nil, nil, 0)
	assert.True(t, errors.Is(err, ErrInvalidSeries))

	empty, err := NewSeries("p", nil, nil, 1)
	require.NoError(t, err)
	assert.True(t, empty.Empty())
}

func TestNewLevelSeries(t *testing.T) {
	dates := []time.Time{day(2024, 1, 2), day(2024, 1, 3)}
	s, err := NewLevelSeries("index", dates, []float64{0, 0.1}, []float64{3000, 3300})
	require.NoError(t, err)
	assert.Equal(t, []float64{3000, 3300}, s.Capital())

	_, err = NewLevelSeries("index", dates, []float64{0, 0.1}, []float64{3000, 0})
	assert.True(t, errors.Is(err, ErrInvalidSeries))

	round, err := SeriesFromPoints("index", s.Points())
	require.NoError(t, err)
	assert.Equal(t, s.Capital(), round.Capital())
	assert.Equal(t, s.Returns(), round.Returns())
}
