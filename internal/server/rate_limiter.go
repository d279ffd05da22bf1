// Package server implements a token bucket that throttles how many chat
// chunks a single connection may broadcast.
package server

import (
	"sync"
	"time"
)

// rateLimiter refills burst tokens evenly over each interval. Every allowed
// chunk spends one token.
type rateLimiter struct {
	mu        sync.Mutex
	tokens    float64
	burst     float64
	perSecond float64
	last      time.Time
	now       func() time.Time
}

func newRateLimiter(burst int, interval time.Duration) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = defaultRefillInterval
	}

	rl := &rateLimiter{
		tokens:    float64(burst),
		burst:     float64(burst),
		perSecond: float64(burst) / interval.Seconds(),
		now:       time.Now,
	}
	rl.last = rl.now()
	return rl
}

func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if elapsed := now.Sub(rl.last).Seconds(); elapsed > 0 {
		rl.tokens += elapsed * rl.perSecond
		if rl.tokens > rl.burst {
			rl.tokens = rl.burst
		}
	}
	rl.last = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
