package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/marketsentinel/sentinel/broker"
)

func testCaller(attempts int, b *Breaker, sleeps *[]time.Duration) *Caller {
	return &Caller{
		Attempts:  attempts,
		BaseDelay: time.Second,
		Breaker:   b,
		Classify:  DefaultClassifier,
		Log:       zap.NewNop().Sugar(),
		Sleep: func(d time.Duration) {
			*sleeps = append(*sleeps, d)
		},
		Jitter: func() float64 { return 1.0 },
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	b := &Breaker{Threshold: 5, Cooldown: time.Minute}
	c := testCaller(5, b, &sleeps)

	calls := 0
	got, err := Do(context.Background(), c, "op", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection reset")
		}
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)

	// Exponential backoff: base, then doubled.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps)

	// Success cleared the failure streak.
	assert.Zero(t, b.Streak())
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	b := &Breaker{Threshold: 100, Cooldown: time.Minute}
	c := testCaller(3, b, &sleeps)

	calls := 0
	_, err := Do(context.Background(), c, "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, calls)

	// No backoff after the final attempt: two sleeps, not three.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps)
}

func TestDoEmptyResultDoesNotRetry(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	b := &Breaker{Threshold: 5, Cooldown: time.Minute}
	c := testCaller(5, b, &sleeps)

	calls := 0
	_, err := Do(context.Background(), c, "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, broker.ErrNotFound
	})
	assert.ErrorIs(t, err, broker.ErrNotFound)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeps)
}

func TestDoRejectionDoesNotRetry(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	b := &Breaker{Threshold: 5, Cooldown: time.Minute}
	c := testCaller(5, b, &sleeps)

	calls := 0
	_, err := Do(context.Background(), c, "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, &broker.RejectionError{Reason: "pattern day trading protection"}
	})
	assert.True(t, broker.IsRejection(err))
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeps)
}

func TestDoBreakerTripsAndCoolsDown(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	b := &Breaker{Threshold: 2, Cooldown: time.Minute}
	c := testCaller(5, b, &sleeps)

	calls := 0
	_, err := Do(context.Background(), c, "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker tripped")

	// First failure backs off, second trips the breaker and sleeps the
	// cooldown instead of retrying further.
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{time.Second, time.Minute}, sleeps)

	// The trip reset the streak so the next cycle starts clean.
	assert.Zero(t, b.Streak())
}

func TestDoBreakerStreakSpansOperations(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	b := &Breaker{Threshold: 3, Cooldown: time.Minute}

	fail := func(ctx context.Context) (int, error) { return 0, errors.New("boom") }

	c := testCaller(1, b, &sleeps)
	_, err := Do(context.Background(), c, "op1", fail)
	assert.Error(t, err)
	assert.Equal(t, 1, b.Streak())

	_, err = Do(context.Background(), c, "op2", fail)
	assert.Error(t, err)
	assert.Equal(t, 2, b.Streak())

	_, err = Do(context.Background(), c, "op3", fail)
	assert.Contains(t, err.Error(), "circuit breaker tripped")
	assert.Zero(t, b.Streak())
}

func TestDoRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	b := &Breaker{Threshold: 5, Cooldown: time.Minute}
	c := testCaller(5, b, &sleeps)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, c, "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
