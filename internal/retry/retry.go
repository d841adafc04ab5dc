// Package retry provides a bounded retry helper with jittered exponential
// backoff, used for optimistic-lock write cycles.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Config holds retry bounds.
type Config struct {
	MaxAttempts int           // Total attempts including the first.
	BaseDelay   time.Duration // Delay after the first failed attempt.
	MaxDelay    time.Duration // Upper bound on any single delay.
}

// DefaultConfig returns sensible retry defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   20 * time.Millisecond,
		MaxDelay:    time.Second,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, or attempts
// are exhausted. retryable decides whether an error is worth another round.
// Between attempts Do sleeps with jittered exponential backoff, honouring
// context cancellation.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error, retryable func(error) bool) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(Backoff(cfg, attempt)):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// Backoff returns the jittered delay before the given attempt (1-based).
// The base delay doubles per attempt, capped at MaxDelay, with up to 50%
// random jitter added to spread out contending writers.
func Backoff(cfg Config, attempt int) time.Duration {
	delay := cfg.BaseDelay
	for i := 1; i < attempt && delay < cfg.MaxDelay; i++ {
		delay *= 2
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}
