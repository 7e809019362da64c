package qvar

import (
	"sync"
	"time"

	"github.com/theapemachine/errnie"
)

// BreakerState is the operating mode of a CircuitBreaker.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // submissions flow
	BreakerOpen                         // submissions fail fast
	BreakerHalfOpen                     // a few probe submissions allowed
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

/*
CircuitBreaker stops submissions to a backend that keeps failing. After
maxFailures consecutive failures it opens and rejects everything until
resetTimeout has passed. It then lets halfOpenMax probes through; that many
successes close it again, a single failure reopens it.

The name refers to the resilience pattern, not to quantum circuits.
*/
type CircuitBreaker struct {
	mu               sync.Mutex
	maxFailures      int
	resetTimeout     time.Duration
	halfOpenMax      int
	failureCount     int
	state            BreakerState
	openTime         time.Time
	halfOpenAttempts int
	metrics          *Metrics
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, halfOpenMax int) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  max(1, maxFailures),
		resetTimeout: resetTimeout,
		halfOpenMax:  max(1, halfOpenMax),
		state:        BreakerClosed,
	}
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Observe(metrics *Metrics) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.metrics = metrics
}

func (cb *CircuitBreaker) Limit() bool {
	return !cb.Allow()
}

// Renormalize moves an open breaker whose timeout has passed to half-open.
func (cb *CircuitBreaker) Renormalize() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerOpen && time.Since(cb.openTime) > cb.resetTimeout {
		cb.state = BreakerHalfOpen
		cb.halfOpenAttempts = 0
		errnie.Info("circuit breaker half-open after %v", cb.resetTimeout)
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++

	switch cb.state {
	case BreakerHalfOpen:
		cb.trip("reopened from half-open")
	case BreakerClosed:
		if cb.failureCount >= cb.maxFailures {
			cb.trip("opened")
		}
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerHalfOpen:
		cb.halfOpenAttempts++
		if cb.halfOpenAttempts >= cb.halfOpenMax {
			cb.state = BreakerClosed
			cb.failureCount = 0
			cb.halfOpenAttempts = 0
			errnie.Info("circuit breaker closed after %d probes", cb.halfOpenMax)
		}
	case BreakerClosed:
		cb.failureCount = 0
	}
}

func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(cb.openTime) > cb.resetTimeout {
			cb.state = BreakerHalfOpen
			cb.halfOpenAttempts = 0
			return true
		}
		return false
	case BreakerHalfOpen:
		return cb.halfOpenAttempts < cb.halfOpenMax
	}
	return false
}

// trip assumes the caller holds the lock.
func (cb *CircuitBreaker) trip(how string) {
	cb.state = BreakerOpen
	cb.openTime = time.Now()
	errnie.Info("circuit breaker %s after %d failures", how, cb.failureCount)
}
