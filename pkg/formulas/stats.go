package formulas

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (n-1 denominator)
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance (n-1 denominator)
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Covariance calculates the sample covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// AnnualizedVolatility calculates annualized volatility from periodic returns
// Formula: sample Std Dev of returns × sqrt(periodsPerYear)
func AnnualizedVolatility(returns []float64, periodsPerYear int) (float64, error) {
	if len(returns) < 2 {
		return 0, fmt.Errorf("volatility needs at least 2 returns, got %d: %w", len(returns), ErrInsufficientData)
	}
	return StdDev(returns) * math.Sqrt(float64(periodsPerYear)), nil
}

// AverageReturn is the simple mean of periodic returns.
func AverageReturn(returns []float64) (float64, error) {
	if len(returns) == 0 {
		return 0, ErrEmptySeries
	}
	return Mean(returns), nil
}

// ProbabilityUp is the fraction of periods with a strictly positive return.
func ProbabilityUp(returns []float64) (float64, error) {
	if len(returns) == 0 {
		return 0, ErrEmptySeries
	}
	up := 0
	for _, r := range returns {
		if r > 0 {
			up++
		}
	}
	return float64(up) / float64(len(returns)), nil
}

// Extremes returns the largest and smallest periodic return.
func Extremes(returns []float64) (maxReturn, minReturn float64, err error) {
	if len(returns) == 0 {
		return 0, 0, ErrEmptySeries
	}
	maxReturn, minReturn = returns[0], returns[0]
	for _, r := range returns[1:] {
		maxReturn = math.Max(maxReturn, r)
		minReturn = math.Min(minReturn, r)
	}
	return maxReturn, minReturn, nil
}
