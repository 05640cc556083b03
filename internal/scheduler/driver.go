package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CycleRunner is the interval-gated cycle entry point
type CycleRunner interface {
	Run(ctx context.Context) error
}

// Driver calls the cycle runner forever: it rests between attempts and
// backs off for longer after a failure.
type Driver struct {
	runner  CycleRunner
	rest    time.Duration
	backoff time.Duration
	log     zerolog.Logger
}

// NewDriver creates a new periodic driver
func NewDriver(runner CycleRunner, rest, backoff time.Duration, log zerolog.Logger) *Driver {
	return &Driver{
		runner:  runner,
		rest:    rest,
		backoff: backoff,
		log:     log.With().Str("component", "cycle_driver").Logger(),
	}
}

// Run blocks until ctx is cancelled. Cancellation never interrupts a cycle
// that has already started.
func (d *Driver) Run(ctx context.Context) error {
	d.log.Info().
		Dur("rest", d.rest).
		Dur("backoff", d.backoff).
		Msg("Background trading loop started")

	for {
		wait := d.rest
		if err := d.attempt(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, ErrNoMarketData) {
			d.log.Error().Err(err).Dur("backoff", d.backoff).Msg("Background trading loop error")
			wait = d.backoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.log.Info().Msg("Background trading loop stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (d *Driver) attempt(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle runner panicked: %v", r)
		}
	}()
	return d.runner.Run(ctx)
}
