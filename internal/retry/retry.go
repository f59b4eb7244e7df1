// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt finished without success.
var ErrExhausted = errors.New("retry attempts exhausted")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// Sleep is swapped out in tests. Nil means SleepContext.
	Sleep SleepFunc
}

// Outcome describes how a retry loop ended.
type Outcome[T any] struct {
	Value    T
	Attempts int
	Failures int   // attempts that returned an error
	LastErr  error // most recent attempt error, if any
}

// SleepContext waits on a timer, returning early with ctx.Err() on cancel.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Until calls fn until done reports success for its value, the attempt
// ceiling is hit, or ctx is cancelled. An attempt that returns an error
// counts as unsuccessful and is retried. The delay is only applied between
// attempts, never after the last one.
//
// The returned error is nil on success, ctx.Err() on cancellation, and
// ErrExhausted when all attempts were used.
func Until[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error), done func(T) bool) (Outcome[T], error) {
	var out Outcome[T]
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		out.Attempts = attempt
		v, err := fn(ctx, attempt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			out.Failures++
			out.LastErr = err
		} else {
			out.Value = v
			if done(v) {
				return out, nil
			}
		}

		if attempt < maxAttempts {
			if err := sleep(ctx, p.Delay); err != nil {
				return out, err
			}
		}
	}
	return out, ErrExhausted
}
