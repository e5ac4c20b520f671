// Package resilience guards the optional network integrations (Redis,
// Kafka): retries with capped exponential backoff, and a circuit breaker
// that lets the searcher fall back to uncached queries.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// ShouldRetry reports whether an error is transient. Nil retries every error.
	ShouldRetry func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = 50 * c.InitialDelay
	}
	return c
}

// Retry calls fn until it succeeds, returns a permanent error, attempts run
// out or ctx ends. The delay doubles after each failure, capped at MaxDelay,
// with up to 10% jitter either way.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	delay := cfg.InitialDelay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return fmt.Errorf("%s: permanent failure: %w", name, err)
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%s: giving up after %d attempts: %w", name, attempt, err)
		}

		wait := jitter(delay)
		logger.Warn("attempt failed, backing off", "attempt", attempt, "of", cfg.MaxAttempts, "wait", wait, "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w (last error: %v)", name, ctx.Err(), err)
		}
		delay = min(2*delay, cfg.MaxDelay)
	}
}

func jitter(d time.Duration) time.Duration {
	return d + time.Duration((rand.Float64()*0.2-0.1)*float64(d))
}
