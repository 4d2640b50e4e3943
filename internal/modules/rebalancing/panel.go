package rebalancing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/backtester/internal/domain"
)

var (
	// ErrEmptyPanel is returned when there are no observations to pivot.
	ErrEmptyPanel = errors.New("no return observations")
	// ErrInvalidObservation is returned for observations with no asset id or a non-finite return.
	ErrInvalidObservation = errors.New("invalid return observation")
	// ErrUnorderedObservations is returned when an asset's dates are not strictly increasing.
	ErrUnorderedObservations = errors.New("observations not strictly increasing")
)

// Panel is a dense, rectangular return table: one row per trading date, one
// column per asset. Missing (date, asset) cells hold a zero return.
// A Panel is never modified after construction.
type Panel struct {
	dates  []time.Time
	assets []string
	index  map[string]int
	data   *mat.Dense
}

// NewPanel pivots observations into a Panel. Assets are ordered by id.
// Dates are normalized to calendar days; each asset's dates must be strictly
// increasing in input order, which also rejects duplicate (date, asset) pairs.
func NewPanel(observations []domain.ReturnObservation) (*Panel, error) {
	if len(observations) == 0 {
		return nil, ErrEmptyPanel
	}

	lastSeen := make(map[string]time.Time)
	dateSet := make(map[time.Time]struct{})
	for i, obs := range observations {
		if obs.AssetID == "" {
			return nil, fmt.Errorf("%w: observation %d has no asset id", ErrInvalidObservation, i)
		}
		if math.IsNaN(obs.Return) || math.IsInf(obs.Return, 0) {
			return nil, fmt.Errorf("%w: %s return on %s is not finite",
				ErrInvalidObservation, obs.AssetID, obs.Date.Format("2006-01-02"))
		}
		day := domain.Day(obs.Date)
		if prev, ok := lastSeen[obs.AssetID]; ok && !day.After(prev) {
			return nil, fmt.Errorf("%w: %s on %s follows %s",
				ErrUnorderedObservations, obs.AssetID, day.Format("2006-01-02"), prev.Format("2006-01-02"))
		}
		lastSeen[obs.AssetID] = day
		dateSet[day] = struct{}{}
	}

	assets := make([]string, 0, len(lastSeen))
	for a := range lastSeen {
		assets = append(assets, a)
	}
	sort.Strings(assets)

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	index := make(map[string]int, len(assets))
	for i, a := range assets {
		index[a] = i
	}
	rowOf := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		rowOf[d] = i
	}

	data := mat.NewDense(len(dates), len(assets), nil)
	for _, obs := range observations {
		data.Set(rowOf[domain.Day(obs.Date)], index[obs.AssetID], obs.Return)
	}

	return &Panel{dates: dates, assets: assets, index: index, data: data}, nil
}

// Len returns the number of dates.
func (p *Panel) Len() int { return len(p.dates) }

// Dates returns a copy of the panel's dates.
func (p *Panel) Dates() []time.Time {
	out := make([]time.Time, len(p.dates))
	copy(out, p.dates)
	return out
}

// Assets returns a copy of the asset ids in column order.
func (p *Panel) Assets() []string {
	out := make([]string, len(p.assets))
	copy(out, p.assets)
	return out
}

// Window returns a copy of rows [from, to) as a matrix.
func (p *Panel) Window(from, to int) *mat.Dense {
	if from < 0 || to > len(p.dates) || from >= to {
		return &mat.Dense{}
	}
	return mat.DenseCopyOf(p.data.Slice(from, to, 0, len(p.assets)))
}

// Row returns a copy of the returns on row i.
func (p *Panel) Row(i int) []float64 {
	return mat.Row(nil, i, p.data)
}

// AssetReturns returns one asset's column, or false if the asset is unknown.
func (p *Panel) AssetReturns(asset string) ([]float64, bool) {
	j, ok := p.index[asset]
	if !ok {
		return nil, false
	}
	return mat.Col(nil, j, p.data), true
}
