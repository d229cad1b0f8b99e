package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inot-trading/core/internal/errs"
)

// RetryConfig configures exponential backoff with full jitter, grounded on
// exchange/retry.go's RetryConfig/WithRetry shape but generalized to a
// caller-supplied transient-error classifier rather than string matching.
type RetryConfig struct {
	MaxAttempts int // total attempts including the first
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig mirrors exchange.DefaultRetryConfig's magnitudes.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// IsTransient classifies an error for retry eligibility. CircuitOpenError is
// always non-retryable per §4.2.
type IsTransient func(error) bool

// Operation is a unit of work the retry policy may invoke multiple times.
type Operation func(ctx context.Context) error

// WithRetry executes op, retrying on transient errors (per classify) with
// full-jitter exponential backoff up to cfg.MaxAttempts. CircuitOpenError
// is classified non-retryable regardless of classify.
func WithRetry(ctx context.Context, cfg RetryConfig, classify IsTransient, op Operation) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		var circuitOpen *errs.CircuitOpenError
		if errors.As(err, &circuitOpen) {
			return err // non-retryable by definition
		}

		if classify != nil && !classify(err) {
			return err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		jittered := fullJitter(delay)
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", jittered).
			Msg("operation failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered):
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// fullJitter picks a random duration in [0, d), per the "full jitter"
// strategy: the max wait time bounds the distribution but every retry's
// actual wait is independently randomized to avoid thundering herds.
func fullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)))
}
