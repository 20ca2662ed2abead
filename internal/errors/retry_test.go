package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		calls++
		if calls < 3 {
			return New(ErrCodeNetworkTimeout, "timeout", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonRetryableAbortsImmediately(t *testing.T) {
	calls := 0
	inputErr := InputError("bad chunk size", nil)
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return inputErr
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, inputErr))
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return New(ErrCodeNetworkUnavailable, "still down", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls) // initial + 3 retries
	assert.Contains(t, err.Error(), "failed after 3 retries")
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetryConfig(), func() error {
		return New(ErrCodeNetworkTimeout, "timeout", nil)
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	calls := 0
	val, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, New(ErrCodeNetworkTimeout, "timeout", nil)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, val)
}
