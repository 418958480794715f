// Package retry implements the bounded retry combinator used around
// compare-and-swap writes and other idempotent steps.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRetry marks an attempt failure that may succeed when run again.
	ErrRetry = errors.New("retry")
	// ErrExhausted is returned once every attempt failed with ErrRetry.
	ErrExhausted = errors.New("attempts exhausted")
)

type Backoff func(attempt int) time.Duration

type Policy struct {
	Attempts int
	Backoff  Backoff
}

// Constant waits d between attempts.
func Constant(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// Exponential doubles base on every attempt, capped at max.
func Exponential(base, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt && d < max; i++ {
			d *= 2
		}
		if d > max {
			d = max
		}
		return d
	}
}

// Retryable wraps err so that Do runs the next attempt.
func Retryable(err error) error {
	return fmt.Errorf("%w: %v", ErrRetry, err)
}

// Do runs fn until it succeeds, fails with an error that does not wrap
// ErrRetry, ctx is done or p.Attempts runs out. Attempts are numbered from 1.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = fn(attempt)
		if last == nil {
			return nil
		}
		if !errors.Is(last, ErrRetry) {
			return last
		}
		if attempt == attempts || p.Backoff == nil {
			continue
		}

		d := p.Backoff(attempt)
		if d <= 0 {
			continue
		}
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, attempts, last)
}
