package formulas

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateRollingVolatility returns the annualized volatility of each trailing
// window of returns. The result has len(returns)-window+1 entries; entry i covers
// returns[i : i+window].
//
// go-talib StdDev is the population deviation; it is rescaled to the sample
// convention used by AnnualizedVolatility.
func CalculateRollingVolatility(returns []float64, window, periodsPerYear int) ([]float64, error) {
	if window < 2 {
		return nil, fmt.Errorf("rolling window must be at least 2, got %d", window)
	}
	if len(returns) < window {
		return nil, fmt.Errorf("rolling volatility needs %d returns, got %d: %w", window, len(returns), ErrInsufficientData)
	}

	std := talib.StdDev(returns, window, 1.0)
	scale := math.Sqrt(float64(periodsPerYear)) * math.Sqrt(float64(window)/float64(window-1))

	out := make([]float64, 0, len(returns)-window+1)
	for _, v := range std[window-1:] {
		if isNaN(v) || v < 0 {
			v = 0
		}
		out = append(out, v*scale)
	}
	return out, nil
}

func isNaN(f float64) bool {
	return f != f
}
