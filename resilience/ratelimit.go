package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Rate is the sustained number of calls per second.
	// Default: 1
	Rate float64

	// Burst is the number of calls allowed back to back.
	// Default: 1
	Burst int

	// WaitOnLimit queues calls for a token instead of rejecting them.
	WaitOnLimit bool

	// MaxWait caps how long a queued call waits for its token.
	// Default: 10 seconds
	MaxWait time.Duration
}

// RateLimiter is a token bucket in front of a dependency.
type RateLimiter struct {
	limiter *rate.Limiter
	wait    bool
	maxWait time.Duration
}

// NewRateLimiter creates a new rate limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 1
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.MaxWait <= 0 {
		config.MaxWait = 10 * time.Second
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
		wait:    config.WaitOnLimit,
		maxWait: config.MaxWait,
	}
}

// Execute runs op once a token is available. A call that would wait longer
// than MaxWait is rejected up front and its token returned.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if !rl.wait {
		if !rl.limiter.Allow() {
			return ErrRateLimitExceeded
		}
		return op(ctx)
	}

	r := rl.limiter.Reserve()
	if !r.OK() {
		return ErrRateLimitExceeded
	}
	delay := r.Delay()
	if delay > rl.maxWait {
		r.Cancel()
		return ErrRateLimitExceeded
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return op(ctx)
}

// Tokens returns the number of tokens available now.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.Tokens()
}
