package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Job re-runs a set of definitions on a schedule.
type Job struct {
	service     *Service
	definitions []Definition
	timeout     time.Duration
	log         zerolog.Logger
}

// NewJob creates a scheduled backtest job
func NewJob(service *Service, definitions []Definition, timeout time.Duration, log zerolog.Logger) *Job {
	return &Job{
		service:     service,
		definitions: definitions,
		timeout:     timeout,
		log:         log.With().Str("job", "scheduled_backtests").Logger(),
	}
}

// Name returns the job name
func (j *Job) Name() string {
	return "scheduled_backtests"
}

// Run executes every definition. One failing definition does not stop the rest;
// the combined error lists every failure.
func (j *Job) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	var errs []error
	for _, def := range j.definitions {
		run, err := j.service.Run(ctx, def)
		if err != nil {
			j.log.Error().Err(err).Str("definition", def.Name).Msg("Scheduled backtest failed")
			errs = append(errs, fmt.Errorf("%s: %w", def.Name, err))
			continue
		}
		j.log.Info().Str("definition", def.Name).Str("run_id", run.ID).Msg("Scheduled backtest stored")
	}
	return errors.Join(errs...)
}
