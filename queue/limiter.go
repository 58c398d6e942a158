package queue

import (
	"context"

	"golang.org/x/time/rate"
)

// ClaimLimiter bounds the rate at which a process claims pending jobs,
// shared by all of its execution slots. A nil *ClaimLimiter never limits.
type ClaimLimiter struct {
	limiter *rate.Limiter
}

// NewClaimLimiter creates a token-bucket limiter allowing perSecond claims
// with the given burst. It returns nil when perSecond is zero.
func NewClaimLimiter(perSecond float64, burst int) *ClaimLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &ClaimLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a claim is permitted or ctx is done.
func (l *ClaimLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a claim is permitted now, consuming a token if so.
func (l *ClaimLimiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}
