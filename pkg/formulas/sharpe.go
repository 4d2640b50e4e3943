package formulas

import (
	"fmt"
	"math"
)

// CalculateSharpeRatio calculates the Sharpe Ratio from annualized figures
//
// Sharpe Ratio Formula:
//
//	Sharpe = (Annualized Return - Risk-free Rate) / Annualized Volatility
func CalculateSharpeRatio(annualizedReturn, volatility, riskFreeRate float64) (float64, error) {
	if volatility == 0 {
		return 0, ErrZeroVolatility
	}
	return (annualizedReturn - riskFreeRate) / volatility, nil
}

// CalculateInformationRatio calculates excess return over a benchmark per unit
// of tracking error, both annualized:
//
//	IR = mean(r - b) × P / (std(r - b) × sqrt(P))
func CalculateInformationRatio(returns, benchmark []float64, periodsPerYear int) (float64, error) {
	if len(returns) != len(benchmark) {
		return 0, fmt.Errorf("information ratio: %d returns vs %d benchmark returns: %w",
			len(returns), len(benchmark), ErrLengthMismatch)
	}
	if len(returns) < 2 {
		return 0, fmt.Errorf("information ratio needs at least 2 periods: %w", ErrInsufficientData)
	}

	diff := make([]float64, len(returns))
	for i := range returns {
		diff[i] = returns[i] - benchmark[i]
	}

	trackingError := StdDev(diff)
	if trackingError == 0 {
		return 0, ErrZeroTrackingError
	}

	p := float64(periodsPerYear)
	return Mean(diff) * p / (trackingError * math.Sqrt(p)), nil
}

// CalculateBeta calculates systematic sensitivity to a benchmark:
//
//	Beta = Cov(r, b) / Var(b)
//
// using sample (n-1) estimators for both terms.
func CalculateBeta(returns, benchmark []float64) (float64, error) {
	if len(returns) != len(benchmark) {
		return 0, fmt.Errorf("beta: %d returns vs %d benchmark returns: %w",
			len(returns), len(benchmark), ErrLengthMismatch)
	}
	if len(returns) < 2 {
		return 0, fmt.Errorf("beta needs at least 2 periods: %w", ErrInsufficientData)
	}

	variance := Variance(benchmark)
	if variance == 0 {
		return 0, ErrZeroVariance
	}
	return Covariance(returns, benchmark) / variance, nil
}

// CalculateAlpha calculates CAPM alpha from annualized returns:
//
//	Alpha = (Rp - rf) - Beta × (Rb - rf)
func CalculateAlpha(annualizedReturn, annualizedBenchmark, beta, riskFreeRate float64) float64 {
	return (annualizedReturn - riskFreeRate) - beta*(annualizedBenchmark-riskFreeRate)
}
