package embedder

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryConfig is the backoff policy for provider calls
type RetryConfig struct {
	MaxRetries int // total attempts, at least one
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns the retry policy used for provider calls
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(MaxBackoffMs) * time.Millisecond,
		Multiplier: BackoffMultiplier,
	}
}

// delay returns the wait before retry number n (1-based)
func (rc RetryConfig) delay(n int) time.Duration {
	d := rc.BaseDelay
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * rc.Multiplier)
		if d >= rc.MaxDelay {
			return rc.MaxDelay
		}
	}
	return min(d, rc.MaxDelay)
}

// retryWithBackoff calls fn until it succeeds or attempts run out. Requests
// the provider rejected outright, and cancellation, stop it immediately.
func retryWithBackoff[T any](ctx context.Context, provider string, rc RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	attempts := max(rc.MaxRetries, 1)

	for n := 1; ; n++ {
		result, err := fn()
		switch {
		case err == nil:
			return result, nil
		case ctx.Err() != nil:
			return zero, ctx.Err()
		case errors.Is(err, errRejected), n == attempts:
			return zero, err
		}

		wait := rc.delay(n)
		slog.Debug("embedding request failed, retrying",
			"provider", provider, "attempt", n, "wait", wait, "error", err)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
}
