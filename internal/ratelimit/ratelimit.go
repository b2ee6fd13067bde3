// Package ratelimit gates outbound engine calls with a token bucket.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"transhub/internal/logger"
)

const (
	DefaultCapacity   = 10
	DefaultRefillRate = 10
)

// Limiter is a token bucket: capacity tokens, refilled continuously at
// refillRate tokens per second. One shared instance gates every engine call
// a coordinator makes, regardless of retry depth.
type Limiter struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
}

// New creates a Limiter. Non-positive parameters fall back to defaults.
func New(capacity int, refillRate float64) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if refillRate <= 0 {
		refillRate = DefaultRefillRate
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(refillRate), capacity),
	}
}

// Acquire blocks until n tokens are available or ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context, n int) error {
	l.mu.RLock()
	limiter := l.limiter
	l.mu.RUnlock()
	return limiter.WaitN(ctx, n)
}

// SetRate updates the bucket parameters in place.
func (l *Limiter) SetRate(capacity int, refillRate float64) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if refillRate <= 0 {
		refillRate = DefaultRefillRate
	}
	l.mu.Lock()
	l.limiter.SetLimit(rate.Limit(refillRate))
	l.limiter.SetBurst(capacity)
	l.mu.Unlock()
	logger.Info("rate limit updated", "module", "ratelimit", "action", "update", "resource", "engine", "result", "ok", "capacity", capacity, "refill_rate", refillRate)
}

// Rate returns the current refill rate in tokens per second.
func (l *Limiter) Rate() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return float64(l.limiter.Limit())
}

// Capacity returns the current bucket capacity.
func (l *Limiter) Capacity() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiter.Burst()
}
