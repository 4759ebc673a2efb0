package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// UnlimitedAttempts makes Retry run until success, a non-retryable
// error, or context cancellation.
const UnlimitedAttempts = -1

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the
	// first). UnlimitedAttempts removes the cap.
	MaxAttempts int
	// InitialBackoff is the delay after the first failure.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
	// BackoffFactor multiplies the delay after each failure.
	BackoffFactor float64
	// Jitter spreads each delay by up to the given fraction (0.0 to
	// 1.0) in either direction.
	Jitter float64
	// Schedule overrides the exponential backoff when set: it returns
	// the wait after the given attempt number. Useful for fixed plans
	// like "every 3s for 40 tries, then every 10 minutes".
	Schedule func(attempt int) time.Duration
	// RetryIf decides whether an error is worth another attempt. The
	// default retries everything except context errors.
	RetryIf func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

func (c *RetryConfig) applyDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 2.0
	}
	if c.RetryIf == nil {
		c.RetryIf = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}
}

// wait returns the delay before the attempt after the given one.
func (c *RetryConfig) wait(attempt int) time.Duration {
	if c.Schedule != nil {
		return c.Schedule(attempt)
	}
	d := float64(c.InitialBackoff) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if c.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * c.Jitter
	}
	if d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	if d < 0 {
		d = float64(c.InitialBackoff)
	}
	return time.Duration(d)
}

// Retry runs fn until it succeeds, the attempt budget runs out, a
// non-retryable error occurs, or the context ends. It returns fn's
// result, or the last error seen.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	cfg.applyDefaults()
	unlimited := cfg.MaxAttempts < 0

	var zero T
	var lastErr error
	for attempt := 1; unlimited || attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.RetryIf(err) {
			return zero, err
		}
		if !unlimited && attempt == cfg.MaxAttempts {
			break
		}

		backoff := cfg.wait(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, backoff)
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// RetryFunc is Retry for functions that only return an error.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := Retry(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
