package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrStop ends Run cleanly when returned by a tick.
var ErrStop = errors.New("scheduler: stop")

// TickFunc is invoked on every aligned interval with the bucket start and the
// 1-based tick count.
type TickFunc func(ctx context.Context, bucket time.Time, n int) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// MaxTicks stops the loop after that many ticks. Zero runs until cancelled.
	MaxTicks int
}

// Scheduler advances the simulation on wall-clock buckets.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick at each aligned interval until ctx is cancelled,
// MaxTicks is reached or tick returns ErrStop. Other tick errors are logged.
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

	next := s.nextTick(time.Now().UTC())
	for n := 1; ; n++ {
		delay := time.Until(next)
		if delay < 0 {
			next = s.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_bucket", next).Msg("waiting for next bucket")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		bucket := s.bucketStart(next)
		s.logger.Debug().Time("bucket", bucket).Int("tick", n).Msg("advancing simulated day")

		if err := tick(ctx, bucket, n); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("tick execution failed")
		}

		if s.opts.MaxTicks > 0 && n >= s.opts.MaxTicks {
			return nil
		}
		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	bucket := now.Truncate(s.opts.Interval)
	if !bucket.After(now) {
		bucket = bucket.Add(s.opts.Interval)
	}
	return bucket
}

func (s *Scheduler) bucketStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
