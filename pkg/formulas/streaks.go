package formulas

// CalculateMaxStreaks returns the longest run of consecutive up periods and
// of consecutive down periods.
//
// A period is up when its return is > 0 and down when < 0. A flat period keeps
// the previous classification, so it extends the running streak rather than
// resetting it. Flat periods before the first non-flat one are unclassified.
func CalculateMaxStreaks(returns []float64) (maxUp, maxDown int) {
	const (
		none = iota
		up
		down
	)

	state := none
	run := 0
	for _, r := range returns {
		class := state
		switch {
		case r > 0:
			class = up
		case r < 0:
			class = down
		}

		if class == none {
			continue
		}
		if class == state {
			run++
		} else {
			run = 1
		}
		state = class

		if state == up && run > maxUp {
			maxUp = run
		}
		if state == down && run > maxDown {
			maxDown = run
		}
	}
	return maxUp, maxDown
}
