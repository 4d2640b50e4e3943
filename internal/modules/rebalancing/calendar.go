package rebalancing

import "time"

// MonthEnds returns the last available date within each calendar month.
// dates must be sorted ascending.
func MonthEnds(dates []time.Time) []time.Time {
	idx := monthEndIndices(dates)
	out := make([]time.Time, len(idx))
	for i, j := range idx {
		out[i] = dates[j]
	}
	return out
}

// monthEndIndices returns the index of each month's last date.
func monthEndIndices(dates []time.Time) []int {
	var idx []int
	for i := range dates {
		if i == len(dates)-1 || !sameMonth(dates[i], dates[i+1]) {
			idx = append(idx, i)
		}
	}
	return idx
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return ay == by && am == bm
}
