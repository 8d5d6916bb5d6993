// Package retry wraps broker calls with jittered exponential backoff and a
// process-wide circuit breaker. Empty results and regulatory rejections are
// recognized terminal outcomes, not retryable faults.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/marketsentinel/sentinel/broker"
)

// Class buckets a fault for retry purposes.
type Class int

const (
	// Transient faults are retried with backoff.
	Transient Class = iota
	// Empty marks a valid "no data" result (position/symbol not found).
	Empty
	// Rejected marks a regulatory rejection; the call is skipped.
	Rejected
)

// Classifier maps an error onto a Class.
type Classifier func(error) Class

// DefaultClassifier classifies faults using the broker error taxonomy.
func DefaultClassifier(err error) Class {
	switch {
	case broker.IsNotFound(err):
		return Empty
	case broker.IsRejection(err):
		return Rejected
	default:
		return Transient
	}
}

// Breaker counts consecutive transient failures across all broker calls.
// Reaching the threshold forces a cooldown sleep and resets the streak.
type Breaker struct {
	Threshold int
	Cooldown  time.Duration

	streak int
}

// Success resets the failure streak.
func (b *Breaker) Success() { b.streak = 0 }

// Failure records one more consecutive failure and reports whether the
// breaker tripped. A trip resets the streak.
func (b *Breaker) Failure() bool {
	b.streak++
	if b.streak >= b.Threshold {
		b.streak = 0
		return true
	}
	return false
}

// Streak returns the current consecutive-failure count.
func (b *Breaker) Streak() int { return b.streak }

// Caller retries operations according to a backoff schedule. Sleep and
// Jitter are injectable so tests run without waiting.
type Caller struct {
	Attempts  int
	BaseDelay time.Duration
	Breaker   *Breaker
	Classify  Classifier
	Log       *zap.SugaredLogger

	Sleep  func(time.Duration)
	Jitter func() float64
}

// NewCaller builds a Caller with the default classifier and real sleeps.
func NewCaller(attempts int, baseDelay time.Duration, b *Breaker, log *zap.SugaredLogger) *Caller {
	return &Caller{
		Attempts:  attempts,
		BaseDelay: baseDelay,
		Breaker:   b,
		Classify:  DefaultClassifier,
		Log:       log,
		Sleep:     time.Sleep,
		Jitter:    func() float64 { return 0.5 + rand.Float64() },
	}
}

// Do invokes fn up to c.Attempts times. Empty and Rejected faults return
// immediately with the original error; transient faults back off with
// jittered exponential delays. When the circuit breaker trips, Do sleeps
// the cooldown, resets the streak, and returns the last error so the
// caller can skip the current symbol and continue.
func Do[T any](ctx context.Context, c *Caller, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var err error

	for i := 0; i < c.Attempts; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		var res T
		res, err = fn(ctx)
		if err == nil {
			c.Breaker.Success()
			return res, nil
		}

		switch c.Classify(err) {
		case Empty:
			return zero, err
		case Rejected:
			c.Log.Errorw("order rejected, skipping", "op", name, "error", err)
			return zero, err
		}

		if c.Breaker.Failure() {
			c.Log.Errorw("circuit breaker tripped, cooling down",
				"op", name, "cooldown", c.Breaker.Cooldown)
			c.Sleep(c.Breaker.Cooldown)
			return zero, fmt.Errorf("%s: circuit breaker tripped: %w", name, err)
		}

		if i == c.Attempts-1 {
			break
		}
		wait := time.Duration(float64(c.BaseDelay) * float64(int(1)<<i) * c.Jitter())
		c.Log.Warnw("call failed, retrying", "op", name, "error", err, "wait", wait, "attempt", i+1)
		c.Sleep(wait)
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", name, c.Attempts, err)
}
