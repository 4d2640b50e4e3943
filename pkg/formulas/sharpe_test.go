package formulas

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSharpeRatio(t *testing.T) {
	s, err := CalculateSharpeRatio(0.12, 0.2, 0.02)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s, 1e-12)

	s, err = CalculateSharpeRatio(0.12, 0, 0.02)
	assert.True(t, errors.Is(err, ErrZeroVolatility))
	assert.False(t, math.IsNaN(s))
}

func TestCalculateBeta(t *testing.T) {
	bench := []float64{0.01, -0.02, 0.015, 0.005, -0.01}

	beta, err := CalculateBeta(bench, bench)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, beta, 1e-12)

	doubled := make([]float64, len(bench))
	for i, b := range bench {
		doubled[i] = 2 * b
	}
	beta, err = CalculateBeta(doubled, bench)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, beta, 1e-12)

	_, err = CalculateBeta(bench, []float64{0.01, 0.01, 0.01, 0.01, 0.01})
	assert.True(t, errors.Is(err, ErrZeroVariance))

	_, err = CalculateBeta(bench, bench[:3])
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestCalculateAlpha(t *testing.T) {
	assert.InDelta(t, 0.0, CalculateAlpha(0.1, 0.1, 1, 0.0284), 1e-12)
	// (0.15-0.03) - 0.5*(0.07-0.03) = 0.10
	assert.InDelta(t, 0.10, CalculateAlpha(0.15, 0.07, 0.5, 0.03), 1e-12)
}

func TestCalculateInformationRatio(t *testing.T) {
	r := []float64{0.02, 0.01, 0.03, 0.00}
	b := []float64{0.01, 0.01, 0.01, 0.01}

	ir, err := CalculateInformationRatio(r, b, 250)
	require.NoError(t, err)

	diff := []float64{0.01, 0, 0.02, -0.01}
	expected := Mean(diff) * 250 / (StdDev(diff) * math.Sqrt(250))
	assert.InDelta(t, expected, ir, 1e-12)

	_, err = CalculateInformationRatio(r, r, 250)
	assert.True(t, errors.Is(err, ErrZeroTrackingError))

	_, err = CalculateInformationRatio(r, b[:2], 250)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}
