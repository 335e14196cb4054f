// Package ratelimit implements a token bucket used to pace calls to the
// inventory sources.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter implements a token bucket rate limiter. A nil *Limiter never limits.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// New creates a limiter that refills ratePerSecond tokens per second up to
// burst. A non-positive rate returns nil, which disables limiting.
func New(ratePerSecond float64, burst int) *Limiter {
	if ratePerSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: ratePerSecond,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		l.tokens = min(l.tokens+elapsed*l.refillRate, l.maxTokens)
	}
	l.lastRefill = now
}

// reserve takes a token if one is available, otherwise it returns how long
// to wait for the next one.
func (l *Limiter) reserve() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return 0, true
	}
	wait := time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
	return max(wait, time.Millisecond), false
}

// Allow consumes a token if one is available.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	_, ok := l.reserve()
	return ok
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	for {
		wait, ok := l.reserve()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
