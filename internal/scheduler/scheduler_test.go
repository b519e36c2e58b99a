package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStopsAfterMaxTicks(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond, MaxTicks: 3}, zerolog.Nop())

	var seen []int
	err := s.Run(context.Background(), func(_ context.Context, _ time.Time, n int) error {
		seen = append(seen, n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestRunStopsOnErrStopAndSurvivesErrors(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond}, zerolog.Nop())

	calls := 0
	err := s.Run(context.Background(), func(context.Context, time.Time, int) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return ErrStop
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRunHonoursCancellation(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, func(context.Context, time.Time, int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAlignedBuckets(t *testing.T) {
	s := New(Options{Interval: time.Minute, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2026, 1, 2, 3, 4, 30, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC), s.nextTick(now))
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC), s.bucketStart(now))
	assert.Panics(t, func() { New(Options{}, zerolog.Nop()) })
}
