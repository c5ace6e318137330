// Package retry implements the fixed retry policy shared by every generative-AI call.
//
// Only upstream 5xx answers are retried. Timeouts, 4xx answers, network errors and
// anything else propagate on the first failure.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const DefaultMaxAttempts = 3

// StatusError is implemented by provider errors that carry the upstream HTTP status.
type StatusError interface {
	error
	StatusCode() int
}

type Policy struct {
	MaxAttempts int
	// Delay returns the pause after the given failed attempt (1-based).
	Delay func(attempt int) time.Duration
	// Sleep waits for d or until ctx is done. Swapped out in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before every pause.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Default is 3 attempts with a linear 1s, 2s pause.
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       Linear(time.Second),
		Sleep:       sleepCtx,
	}
}

// Linear returns a delay of attempt*step.
func Linear(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// IsServerError reports whether err carries an upstream 5xx status.
func IsServerError(err error) bool {
	var se StatusError
	if !errors.As(err, &se) {
		return false
	}
	code := se.StatusCode()
	return code >= 500 && code <= 599
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the attempts run out.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for calls that return a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsServerError(err) || attempt >= p.MaxAttempts {
			return zero, err
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if sleepErr := p.Sleep(ctx, delay); sleepErr != nil {
			return zero, fmt.Errorf("%w: %w", sleepErr, err)
		}
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Delay == nil {
		p.Delay = Linear(time.Second)
	}
	if p.Sleep == nil {
		p.Sleep = sleepCtx
	}
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
