package testing

import (
	"math/rand"
	"time"

	"github.com/aristath/backtester/internal/domain"
)

// BusinessDays returns every weekday in [from, to].
func BusinessDays(from, to time.Time) []time.Time {
	var out []time.Time
	for d := domain.Day(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

// NewReturnFixtures returns seeded pseudo-random daily returns for each asset on
// each date. Asset i has drift 2bp·(i+1) and volatility 1%·(i+1).
func NewReturnFixtures(seed int64, dates []time.Time, assets []string) []domain.ReturnObservation {
	rng := rand.New(rand.NewSource(seed))
	out := make([]domain.ReturnObservation, 0, len(dates)*len(assets))
	for _, d := range dates {
		for i, a := range assets {
			out = append(out, domain.ReturnObservation{
				Date:    d,
				AssetID: a,
				Return:  0.0002*float64(i+1) + rng.NormFloat64()*0.01*float64(i+1),
			})
		}
	}
	return out
}

// NewLevelFixtures returns an index starting at start that compounds seeded
// pseudo-random daily returns.
func NewLevelFixtures(seed int64, dates []time.Time, start float64) []domain.LevelObservation {
	rng := rand.New(rand.NewSource(seed))
	out := make([]domain.LevelObservation, len(dates))
	level := start
	for i, d := range dates {
		r := 0.0
		if i > 0 {
			r = 0.0003 + rng.NormFloat64()*0.008
			level *= 1 + r
		}
		out[i] = domain.LevelObservation{Date: d, Level: level, Return: r}
	}
	return out
}
