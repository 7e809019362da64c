package qvar

import (
	"sync"
	"time"
)

/*
RateLimiter is a token bucket in front of a backend. Every submission takes a
token; tokens come back one per refillRate, up to maxTokens, so short bursts
pass while the sustained rate stays at one submission per refillRate.
*/
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
	metrics    *Metrics
}

func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (rl *RateLimiter) Observe(metrics *Metrics) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.metrics = metrics
}

// Limit takes a token if one is available and reports whether none was.
func (rl *RateLimiter) Limit() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens > 0 {
		rl.tokens--
		return false
	}

	if rl.metrics != nil {
		rl.metrics.recordRateLimit()
	}
	return true
}

func (rl *RateLimiter) Renormalize() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
}

// Interval is how long a limited caller should wait before trying again.
func (rl *RateLimiter) Interval() time.Duration {
	return rl.refillRate
}

// refill assumes the caller holds the lock.
func (rl *RateLimiter) refill() {
	if rl.refillRate <= 0 {
		rl.tokens = rl.maxTokens
		return
	}

	periods := int64(time.Since(rl.lastRefill) / rl.refillRate)
	if periods <= 0 {
		return
	}

	rl.tokens = int(min(int64(rl.maxTokens), int64(rl.tokens)+periods))
	rl.lastRefill = rl.lastRefill.Add(time.Duration(periods) * rl.refillRate)
}
