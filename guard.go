package qvar

import (
	"context"
	"fmt"
	"time"

	"github.com/theapemachine/errnie"
	"github.com/theapemachine/qvar/circuit"
)

/*
GuardedBackend wraps a backend with the submission regulators: an optional
circuit breaker, an optional rate limiter, and a retry policy. Without options
it behaves exactly like the wrapped backend, making a single attempt and
returning its error unchanged.
*/
type GuardedBackend struct {
	backend circuit.Backend
	retry   *RetryPolicy
	breaker *CircuitBreaker
	limiter *RateLimiter
	metrics *Metrics
	filter  func(error) bool
}

type GuardOption func(*GuardedBackend)

func WithRetry(attempts int, strategy RetryStrategy) GuardOption {
	return func(g *GuardedBackend) {
		g.retry = &RetryPolicy{
			MaxAttempts: max(1, attempts),
			Strategy:    strategy,
		}
	}
}

// WithRetryFilter vetoes retries for errors filter returns false for. It
// applies whatever the order of the options.
func WithRetryFilter(filter func(error) bool) GuardOption {
	return func(g *GuardedBackend) {
		g.filter = filter
	}
}

func WithCircuitBreaker(maxFailures int, resetTimeout time.Duration, halfOpenMax int) GuardOption {
	return func(g *GuardedBackend) {
		g.breaker = NewCircuitBreaker(maxFailures, resetTimeout, halfOpenMax)
	}
}

func WithRateLimit(maxTokens int, refillRate time.Duration) GuardOption {
	return func(g *GuardedBackend) {
		g.limiter = NewRateLimiter(maxTokens, refillRate)
	}
}

func WithGuardMetrics(metrics *Metrics) GuardOption {
	return func(g *GuardedBackend) {
		g.metrics = metrics
	}
}

func NewGuardedBackend(backend circuit.Backend, opts ...GuardOption) *GuardedBackend {
	g := &GuardedBackend{
		backend: backend,
		retry:   noRetry(),
		metrics: NewMetrics(),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.filter != nil {
		g.retry.Filter = g.filter
	}

	for _, r := range g.regulators() {
		r.Observe(g.metrics)
	}

	return g
}

func (g *GuardedBackend) regulators() []Regulator {
	regs := make([]Regulator, 0, 2)
	if g.breaker != nil {
		regs = append(regs, g.breaker)
	}
	if g.limiter != nil {
		regs = append(regs, g.limiter)
	}
	return regs
}

func (g *GuardedBackend) Metrics() *Metrics {
	return g.metrics
}

func (g *GuardedBackend) Breaker() *CircuitBreaker {
	return g.breaker
}

// Renormalize lets every regulator recover from a period of restriction.
func (g *GuardedBackend) Renormalize() {
	for _, r := range g.regulators() {
		r.Renormalize()
	}
}

func (g *GuardedBackend) Submit(ctx context.Context, c *circuit.Circuit, shots int) (circuit.Counts, error) {
	var lastErr error

	for attempt := 0; attempt < g.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := g.retry.Strategy.NextDelay(attempt)
			errnie.Info("circuit %s retrying attempt %d after %v", c.Name, attempt+1, delay)

			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if g.breaker != nil && g.breaker.Limit() {
			return nil, fmt.Errorf("%w: circuit breaker is %s", ErrBackendUnavailable, g.breaker.State())
		}

		if err := g.throttle(ctx); err != nil {
			return nil, err
		}

		startTime := time.Now()
		counts, err := g.backend.Submit(ctx, c, shots)
		g.metrics.recordSubmission(startTime, err == nil)

		if err == nil {
			if g.breaker != nil {
				g.breaker.RecordSuccess()
			}
			return counts, nil
		}

		lastErr = err
		if g.breaker != nil {
			g.breaker.RecordFailure()
		}

		if g.retry.Filter != nil && !g.retry.Filter(err) {
			break
		}
	}

	if g.retry.MaxAttempts == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("all retries failed for circuit %s: %w", c.Name, lastErr)
}

// throttle blocks until the rate limiter hands out a token.
func (g *GuardedBackend) throttle(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	for g.limiter.Limit() {
		if err := sleep(ctx, g.limiter.Interval()); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
