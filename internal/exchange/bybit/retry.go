package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// RetryConfig controls how read requests are retried. Orders are never
// retried here; a repeated create could open a second position.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryConfig returns a backoff of 200ms doubling up to 2s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    2,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// WithRetry enables retries of GET requests on rate limits and transport faults.
func WithRetry(config RetryConfig) Option {
	return func(c *Client) {
		c.retry = config
	}
}

// backOff builds the exponential schedule described by the config.
func (cfg RetryConfig) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxDelay
	b.Multiplier = cfg.BackoffFactor
	b.RandomizationFactor = 0
	if cfg.JitterEnabled {
		b.RandomizationFactor = 0.1
	}
	b.Reset()
	return b
}

// request sends a call, retrying reads according to the client's policy.
func (c *Client) request(ctx context.Context, endpoint, method string, params Params) (json.RawMessage, error) {
	if method != http.MethodGet || c.retry.MaxRetries <= 0 {
		return c.send(ctx, endpoint, method, params)
	}

	attempt := 1
	operation := func() (json.RawMessage, error) {
		result, err := c.send(ctx, endpoint, method, params)
		if err != nil && !isRetryable(ctx, err) {
			return nil, backoff.Permanent(err)
		}
		return result, err
	}
	notify := func(err error, delay time.Duration) {
		attempt++
		c.logger.Info("retrying bybit request",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.retry.backOff()),
		backoff.WithMaxTries(uint(c.retry.MaxRetries+1)),
		backoff.WithNotify(notify))
	if err != nil {
		var transport *TransportError
		if errors.Is(err, ctx.Err()) && !errors.As(err, &transport) {
			return nil, &TransportError{Op: method + " " + endpoint, Err: err}
		}
		return nil, err
	}
	return result, nil
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if IsRateLimitError(err) {
		return true
	}
	var transport *TransportError
	return errors.As(err, &transport)
}
