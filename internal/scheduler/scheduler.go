package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TickFunc is invoked on every scheduled run. at is the scheduled time, not
// the wall clock at invocation.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour. A Cron spec wins over Interval.
type Options struct {
	Cron         string
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	Location     *time.Location
}

// Scheduler drives periodic repricing runs.
type Scheduler struct {
	opts     Options
	schedule cron.Schedule
	logger   zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	s := &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}

	switch {
	case opts.Cron != "":
		schedule, err := cron.ParseStandard(opts.Cron)
		if err != nil {
			return nil, fmt.Errorf("parse cron spec %q: %w", opts.Cron, err)
		}
		s.schedule = schedule
	case opts.Interval > 0:
	default:
		return nil, errors.New("scheduler needs a cron spec or a positive interval")
	}
	return s, nil
}

// Run blocks, invoking tick at each scheduled time until ctx is cancelled.
// A failing tick is logged and does not stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.Next(time.Now())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.Next(time.Now())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_run", next).Msg("waiting for next run")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		s.logger.Info().Time("at", next).Msg("executing scheduled tick")
		if err := tick(ctx, next); err != nil {
			s.logger.Error().Err(err).Time("at", next).Msg("tick execution failed")
		}

		next = s.Next(next)
	}
}

// Next returns the first scheduled time strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	now = now.In(s.opts.Location)
	if s.schedule != nil {
		return s.schedule.Next(now)
	}
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	bucket := now.Truncate(s.opts.Interval)
	if !bucket.After(now) {
		bucket = bucket.Add(s.opts.Interval)
	}
	return bucket
}
