package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier is the growth factor applied after each retry.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration:
// three attempts, starting at one second and doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// attemptError is returned by one attempt. It carries the classification
// used to decide whether another attempt is worth making.
type attemptError struct {
	class      ErrorClass
	statusCode int
	err        error
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

// retryWithBackoff runs fn until it succeeds, fails with a non-transient
// error, or runs out of attempts. Cancellation of ctx stops the loop and is
// returned as is.
func (c *Client) retryWithBackoff(ctx context.Context, step string, fn func() error) error {
	cfg := c.retry
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	backoff := cfg.InitialBackoff
	var last *attemptError

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				c.logger.Info("request succeeded after retry", "step", step, "attempt", attempt)
			}
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var sessErr *SessionError
		if errors.As(err, &sessErr) {
			return err
		}

		if !errors.As(err, &last) {
			return err
		}

		if !last.class.transient() {
			return &FetchError{
				Step:       step,
				StatusCode: last.statusCode,
				Class:      last.class,
				Attempts:   attempt,
				Err:        last.err,
			}
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		c.metrics.retries.WithLabelValues(string(last.class)).Inc()
		c.metrics.backoff.WithLabelValues(string(last.class)).Observe(backoff.Seconds())

		c.logger.Debug("retrying request after backoff",
			"step", step,
			"attempt", attempt,
			"error_class", last.class,
			"backoff", backoff,
			"error", last.err,
		)

		select {
		case <-ctx.Done():
			c.logger.Warn("context cancelled during retry backoff", "step", step, "attempt", attempt)
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	c.metrics.retryExhausted.WithLabelValues(string(last.class)).Inc()
	c.logger.Warn("retry attempts exhausted",
		"step", step,
		"error_class", last.class,
		"max_attempts", cfg.MaxAttempts,
	)

	return &FetchError{
		Step:       step,
		StatusCode: last.statusCode,
		Class:      last.class,
		Attempts:   cfg.MaxAttempts,
		Err:        fmt.Errorf("%w: %w", ErrRetryExhausted, last.err),
	}
}

// logAttrs is a small helper for uniform request logging.
func logAttrs(step string, status int, elapsed time.Duration) []any {
	return []any{slog.String("step", step), slog.Int("status", status), slog.Duration("elapsed", elapsed)}
}
