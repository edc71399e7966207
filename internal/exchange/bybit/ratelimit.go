package bybit

import (
	"golang.org/x/time/rate"
)

// WithRateLimit caps signed requests at perSecond with bursts of up to burst.
// Either value at or below zero leaves requests unpaced.
func WithRateLimit(burst int, perSecond float64) Option {
	return func(c *Client) {
		if burst <= 0 || perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}
