// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket sized to one source's request budget.
// Concurrent callers serialize through Wait; a limiter is shared by every
// caller of its source.
type RateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rps      float64
	last     time.Time
}

// NewRateLimiter returns a limiter refilling at rps tokens per second with
// a burst capacity of one second's budget (minimum 1). Non-positive rps
// yields an unlimited limiter.
func NewRateLimiter(rps float64) *RateLimiter {
	capacity := rps
	if capacity < 1 {
		capacity = 1
	}
	return &RateLimiter{
		tokens:   capacity,
		capacity: capacity,
		rps:      rps,
		last:     time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l == nil || l.rps <= 0 {
		return ctx.Err()
	}
	for {
		l.mu.Lock()
		now := time.Now()
		l.tokens += now.Sub(l.last).Seconds() * l.rps
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
		l.last = now

		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - l.tokens) / l.rps * float64(time.Second))
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
