// Package ratelimit implements the per-org client-side token bucket that
// paces outbound API calls.
package ratelimit

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// Limiter wraps a token bucket. The bucket starts full; each logical send
// takes one token, and tokens return at the configured rate. Retries of the
// same logical call do not re-acquire.
type Limiter struct {
	limiter     *rate.Limiter
	waitOnLimit bool
}

// New creates a limiter from config; nil selects the defaults.
func New(config *sfapi.RateLimitConfig) *Limiter {
	if config == nil {
		config = sfapi.DefaultRateLimitConfig()
	}

	return &Limiter{
		limiter:     rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.BurstSize),
		waitOnLimit: config.WaitOnLimit,
	}
}

// Acquire takes one token. With WaitOnLimit it blocks until a token is
// available or the context ends; without it an empty bucket fails
// immediately with a RateLimitError carrying the wait estimate.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.waitOnLimit {
		err := l.limiter.Wait(ctx)
		if err != nil {
			return fmt.Errorf("waiting for rate limit token: %w", err)
		}

		return nil
	}

	reservation := l.limiter.Reserve()

	delay := reservation.Delay()
	if delay == 0 {
		return nil
	}

	// Hand the token back; this call is not going out.
	reservation.Cancel()

	return &sfapi.RateLimitError{
		Message:    "client-side rate limit exceeded",
		RetryAfter: int(math.Ceil(delay.Seconds())),
	}
}
