package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	attempts := 0

	err := WithRetry(context.Background(), cfg, func(error) bool { return true }, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	attempts := 0

	err := WithRetry(context.Background(), cfg, func(error) bool { return false }, func(ctx context.Context) error {
		attempts++
		return errors.New("permanent")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_CircuitOpenNeverRetried(t *testing.T) {
	reg := newTestRegistry()
	b := reg.Register(BreakerConfig{Name: "retry-co", FailureThreshold: 1, RecoveryTimeout: time.Second, HalfOpenMaxSuccesses: 1})
	_ = b.Execute(context.Background(), func(ctx context.Context) error { return errors.New("trip it") })
	require.Equal(t, StateOpen, b.State())

	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	err := WithRetry(context.Background(), cfg, func(error) bool { return true }, func(ctx context.Context) error {
		attempts++
		return b.Execute(ctx, func(ctx context.Context) error { return nil })
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "CircuitOpenError must not be retried")
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	attempts := 0
	err := WithRetry(context.Background(), cfg, func(error) bool { return true }, func(ctx context.Context) error {
		attempts++
		return errors.New("always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}
