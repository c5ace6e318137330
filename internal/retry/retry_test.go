package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("upstream status %d", e.code) }
func (e statusErr) StatusCode() int { return e.code }

// recordingPolicy never sleeps; it records the requested pauses instead.
func recordingPolicy(delays *[]time.Duration) Policy {
	p := Default()
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return p
}

func TestDo_RetriesServerErrorsThreeTimes(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := Do(context.Background(), recordingPolicy(&delays), func(ctx context.Context) error {
		calls++
		return statusErr{code: 500}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)

	var se statusErr
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.code)
}

func TestDo_NonServerErrorsPropagateImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"bad request", statusErr{code: 400}},
		{"unauthorized", statusErr{code: 401}},
		{"rate limited", statusErr{code: 429}},
		{"network", errors.New("dial tcp: connection refused")},
		{"timeout", context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delays []time.Duration
			calls := 0

			err := Do(context.Background(), recordingPolicy(&delays), func(ctx context.Context) error {
				calls++
				return tt.err
			})

			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, calls)
			assert.Empty(t, delays)
		})
	}
}

func TestDoValue_SucceedsAfterTransientFailure(t *testing.T) {
	var delays []time.Duration
	calls := 0

	v, err := DoValue(context.Background(), recordingPolicy(&delays), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", fmt.Errorf("generate: %w", statusErr{code: 503})
		}
		return "image", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "image", v)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{time.Second}, delays)
}

func TestDo_OnRetryHook(t *testing.T) {
	var attempts []int
	p := Default()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	_ = Do(context.Background(), p, func(ctx context.Context) error {
		return statusErr{code: 502}
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_CancelledDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	p := Policy{MaxAttempts: 3, Delay: Linear(time.Hour)}
	err := Do(ctx, p, func(ctx context.Context) error {
		calls++
		return statusErr{code: 500}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)

	var se statusErr
	require.True(t, errors.As(err, &se), "upstream error lost: %v", err)
	assert.Equal(t, 500, se.code)
	assert.True(t, IsServerError(err))
}

func TestIsServerError(t *testing.T) {
	assert.True(t, IsServerError(statusErr{code: 500}))
	assert.True(t, IsServerError(fmt.Errorf("wrapped: %w", statusErr{code: 599})))
	assert.False(t, IsServerError(statusErr{code: 600}))
	assert.False(t, IsServerError(statusErr{code: 404}))
	assert.False(t, IsServerError(errors.New("plain")))
	assert.False(t, IsServerError(nil))
}
