// Package backtest runs stored or inline backtest definitions end to end:
// load history, rebalance, evaluate, persist and publish.
package backtest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aristath/backtester/internal/domain"
)

// ErrInvalidInput marks failures caused by the request rather than the system.
var ErrInvalidInput = errors.New("invalid input")

const dateLayout = "2006-01-02"

// Definition describes one backtest. Zero values take the service defaults.
type Definition struct {
	Name         string           `json:"name" yaml:"name" msgpack:"name"`
	Assets       []string         `json:"assets,omitempty" yaml:"assets" msgpack:"assets"`
	Benchmarks   []string         `json:"benchmarks,omitempty" yaml:"benchmarks" msgpack:"benchmarks"`
	WindowMonths int              `json:"window_months,omitempty" yaml:"window_months" msgpack:"window_months"`
	Objective    domain.Objective `json:"objective,omitempty" yaml:"objective" msgpack:"objective"`
	BaseCapital  float64          `json:"base_capital,omitempty" yaml:"base_capital" msgpack:"base_capital"`
	// From and To bound the history used (YYYY-MM-DD, inclusive); empty is open.
	From string `json:"from,omitempty" yaml:"from" msgpack:"from"`
	To   string `json:"to,omitempty" yaml:"to" msgpack:"to"`
}

// Defaults fills unset definition fields.
type Defaults struct {
	WindowMonths int
	Objective    domain.Objective
	BaseCapital  float64
}

// withDefaults returns a copy with unset fields filled and the objective canonicalized.
func (d Definition) withDefaults(def Defaults) (Definition, error) {
	if d.WindowMonths == 0 {
		d.WindowMonths = def.WindowMonths
	}
	if d.BaseCapital == 0 {
		d.BaseCapital = def.BaseCapital
	}
	if d.Objective == "" {
		d.Objective = def.Objective
	}
	objective, err := domain.ParseObjective(string(d.Objective))
	if err != nil {
		return d, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	d.Objective = objective
	if d.Name == "" {
		d.Name = fmt.Sprintf("%s-%dm", d.Objective, d.WindowMonths)
	}
	return d, nil
}

// Range parses From and To. Unset bounds are zero times.
func (d Definition) Range() (from, to time.Time, err error) {
	if d.From != "" {
		if from, err = time.Parse(dateLayout, d.From); err != nil {
			return from, to, fmt.Errorf("%w: from %q: %v", ErrInvalidInput, d.From, err)
		}
	}
	if d.To != "" {
		if to, err = time.Parse(dateLayout, d.To); err != nil {
			return from, to, fmt.Errorf("%w: to %q: %v", ErrInvalidInput, d.To, err)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("%w: to %s is before from %s", ErrInvalidInput, d.To, d.From)
	}
	return from, to, nil
}

// Validate checks the definition after defaults are applied.
func (d Definition) Validate() error {
	if d.WindowMonths < 1 {
		return fmt.Errorf("%w: window_months must be at least 1, got %d", ErrInvalidInput, d.WindowMonths)
	}
	if d.BaseCapital <= 0 {
		return fmt.Errorf("%w: base_capital must be positive, got %v", ErrInvalidInput, d.BaseCapital)
	}
	seen := make(map[string]bool, len(d.Assets))
	for _, a := range d.Assets {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%w: empty asset id", ErrInvalidInput)
		}
		if seen[a] {
			return fmt.Errorf("%w: asset %s listed twice", ErrInvalidInput, a)
		}
		seen[a] = true
	}
	for _, b := range d.Benchmarks {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("%w: empty benchmark id", ErrInvalidInput)
		}
	}
	_, _, err := d.Range()
	return err
}

type definitionFile struct {
	Backtests []Definition `yaml:"backtests"`
}

// LoadDefinitions reads a YAML file holding a top-level "backtests" list.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions decodes definitions from YAML. Unknown keys are rejected.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var file definitionFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: failed to parse definitions: %v", ErrInvalidInput, err)
	}
	if len(file.Backtests) == 0 {
		return nil, fmt.Errorf("%w: no backtests defined", ErrInvalidInput)
	}
	return file.Backtests, nil
}
