package formulas

import "fmt"

// Drawdown describes the deepest decline of a capital line from its running peak.
type Drawdown struct {
	Value       float64 // minimum of capital/running_max - 1, always <= 0
	PeakIndex   int     // index where the running maximum preceding the trough was first reached
	TroughIndex int     // index of the deepest point
}

// CalculateMaxDrawdown finds the maximum drawdown of a capital line.
//
// Drawdown at t = capital[t] / max(capital[0..t]) - 1.
// When several points share the minimum drawdown the earliest one is the trough.
// A line that never declines reports Value 0 with peak and trough at index 0.
func CalculateMaxDrawdown(capital []float64) (Drawdown, error) {
	if len(capital) == 0 {
		return Drawdown{}, ErrEmptySeries
	}

	var result Drawdown
	peak := capital[0]
	peakIndex := 0

	for i, value := range capital {
		if value <= 0 {
			return Drawdown{}, fmt.Errorf("capital at index %d is %v: %w", i, value, ErrNonPositiveCapital)
		}
		if value > peak {
			peak = value
			peakIndex = i
		}
		drawdown := value/peak - 1
		if drawdown < result.Value {
			result = Drawdown{Value: drawdown, PeakIndex: peakIndex, TroughIndex: i}
		}
	}

	return result, nil
}
