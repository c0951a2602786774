package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ibeckermayer/credify/internal/retry"
)

var errNotYet = errors.New("not yet")

func TestDoStopsOnSuccess(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), retry.Policy{Attempts: 5}, func(context.Context, int) error {
		calls++
		if calls < 3 {
			return retry.Retryable(errNotYet)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsExactlyAttempts(t *testing.T) {
	var seen []int
	err := retry.Do(context.Background(), retry.Policy{Attempts: 4, Delay: time.Millisecond}, func(_ context.Context, attempt int) error {
		seen = append(seen, attempt)
		return retry.Retryable(errNotYet)
	})
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.ErrorIs(t, err, errNotYet)
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("boom")
	calls := 0
	err := retry.Do(context.Background(), retry.Policy{Attempts: 5}, func(context.Context, int) error {
		calls++
		return permanent
	})
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
	assert.False(t, retry.IsRetryable(err))
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry.Do(ctx, retry.Policy{Attempts: 10, Delay: time.Hour}, func(context.Context, int) error {
		calls++
		cancel()
		return retry.Retryable(errNotYet)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoRunsAtLeastOnce(t *testing.T) {
	calls := 0
	_ = retry.Do(context.Background(), retry.Policy{}, func(context.Context, int) error {
		calls++
		return retry.Retryable(errNotYet)
	})
	assert.Equal(t, 1, calls)
}

func TestRetryableNil(t *testing.T) {
	assert.NoError(t, retry.Retryable(nil))
}
