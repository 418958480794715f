package retry

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 5}, func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return Retryable(errors.New("conflict"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 4, Backoff: Constant(time.Millisecond)}, func(int) error {
		calls++
		return Retryable(errors.New("conflict"))
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 4, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("insufficient")
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 10}, func(int) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 10, Backoff: Constant(time.Hour)}, func(int) error {
		calls++
		cancel()
		return Retryable(errors.New("conflict"))
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExponential(t *testing.T) {
	b := Exponential(10*time.Millisecond, 50*time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, b(1))
	assert.Equal(t, 20*time.Millisecond, b(2))
	assert.Equal(t, 40*time.Millisecond, b(3))
	assert.Equal(t, 50*time.Millisecond, b(4))
	assert.Equal(t, 50*time.Millisecond, b(10))
}
