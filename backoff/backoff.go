// Package backoff computes delays for loops that must survive a store
// outage. Workers and the leader loop use it to slow their polling while
// the store is unavailable and to resume normal cadence once it recovers.
package backoff

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Strategy computes the delay after the n-th consecutive failure
// (1-indexed).
type Strategy interface {
	Delay(failures int) time.Duration
}

// ──────────────────────────────────────────────────
// Strategies
// ──────────────────────────────────────────────────

// Constant waits the same interval after every failure.
type Constant time.Duration

// Delay returns the fixed interval.
func (c Constant) Delay(int) time.Duration { return time.Duration(c) }

// Exponential doubles the delay with each failure up to Max. When Jitter
// is set the delay is drawn uniformly from [d/2, d] so that workers that
// lost the store together do not return together.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  bool
}

// Delay returns min(Initial * 2^(failures-1), Max), optionally jittered.
func (e Exponential) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := float64(e.Initial) * math.Pow(2, float64(failures-1))
	if e.Max > 0 && d > float64(e.Max) {
		d = float64(e.Max)
	}
	if e.Jitter {
		d = d/2 + rand.Float64()*d/2 //nolint:gosec // jitter does not need crypto rand
	}
	return time.Duration(d)
}

// Default returns the strategy used for store outages: jittered
// exponential from the given poll interval up to 30 seconds.
func Default(poll time.Duration) Strategy {
	if poll <= 0 {
		poll = time.Second
	}
	return Exponential{Initial: poll, Max: 30 * time.Second, Jitter: true}
}

// ──────────────────────────────────────────────────
// Tracker
// ──────────────────────────────────────────────────

// Tracker counts consecutive failures of one loop.
type Tracker struct {
	strategy Strategy

	mu       sync.Mutex
	failures int
}

// NewTracker creates a Tracker using s.
func NewTracker(s Strategy) *Tracker {
	return &Tracker{strategy: s}
}

// Failure records a failure and returns how long to wait before retrying.
func (t *Tracker) Failure() time.Duration {
	t.mu.Lock()
	t.failures++
	n := t.failures
	t.mu.Unlock()
	return t.strategy.Delay(n)
}

// Success resets the failure count and reports whether the loop was
// previously failing, so callers can log recovery once.
func (t *Tracker) Success() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	recovered := t.failures > 0
	t.failures = 0
	return recovered
}

// Failures returns the current consecutive failure count.
func (t *Tracker) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
