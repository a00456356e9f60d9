package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RateLimiter paces consecutive browser actions.
type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

type SimpleRateLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
	jitter     bool
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   true,
	}
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastAction)
	delay := r.calculateDelay()

	if elapsed < delay {
		timer := time.NewTimer(delay - elapsed)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	r.lastAction = time.Now()
	return nil
}

func (r *SimpleRateLimiter) SetDelay(min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if max < min {
		max = min
	}
	r.minDelay = min
	r.maxDelay = max
}

// Delays returns the current pacing window.
func (r *SimpleRateLimiter) Delays() (time.Duration, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minDelay, r.maxDelay
}

func (r *SimpleRateLimiter) calculateDelay() time.Duration {
	if !r.jitter || r.minDelay >= r.maxDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	return r.minDelay + time.Duration(rand.Int63n(int64(delta)))
}

// AdaptiveRateLimiter widens the pacing window while the marketplace keeps
// showing challenges and walks it back to the configured base window after a
// streak of clean clicks.
type AdaptiveRateLimiter struct {
	*SimpleRateLimiter
	baseMin     time.Duration
	baseMax     time.Duration
	ceiling     time.Duration
	strikes     int
	cleanStreak int

	// StrikeLimit challenge sightings in a row widen the window by Backoff.
	StrikeLimit int
	Backoff     float64
	// RecoverAfter clean clicks in a row narrow the window by Recovery.
	RecoverAfter int
	Recovery     float64
}

func NewAdaptiveRateLimiter(minDelay, maxDelay, ceiling time.Duration) *AdaptiveRateLimiter {
	base := NewSimpleRateLimiter(minDelay, maxDelay)
	if ceiling < base.maxDelay {
		ceiling = base.maxDelay
	}
	return &AdaptiveRateLimiter{
		SimpleRateLimiter: base,
		baseMin:           base.minDelay,
		baseMax:           base.maxDelay,
		ceiling:           ceiling,
		StrikeLimit:       3,
		Backoff:           1.5,
		RecoverAfter:      6,
		Recovery:          0.9,
	}
}

// RecordSuccess counts a tile click that did not run into a challenge.
func (a *AdaptiveRateLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.strikes = 0
	a.cleanStreak++
	if a.cleanStreak < a.RecoverAfter {
		return
	}
	a.cleanStreak = 0

	a.minDelay = maxDuration(scale(a.minDelay, a.Recovery), a.baseMin)
	a.maxDelay = maxDuration(scale(a.maxDelay, a.Recovery), a.baseMax)
}

// RecordError counts a challenge seen between tile clicks.
func (a *AdaptiveRateLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cleanStreak = 0
	a.strikes++
	if a.strikes < a.StrikeLimit {
		return
	}
	a.strikes = 0

	a.maxDelay = minDuration(scale(a.maxDelay, a.Backoff), a.ceiling)
	a.minDelay = minDuration(scale(a.minDelay, a.Backoff), a.maxDelay)
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
