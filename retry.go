package qvar

import (
	"math"
	"time"
)

/*
RetryPolicy decides how often a failed submission is attempted again. Filter,
when set, vetoes retries for errors it returns false for.
*/
type RetryPolicy struct {
	MaxAttempts int
	Strategy    RetryStrategy
	Filter      func(error) bool
}

type RetryStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay after every attempt.
type ExponentialBackoff struct {
	Initial time.Duration
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	return eb.Initial * time.Duration(math.Pow(2, float64(attempt-1)))
}

// noRetry is the policy of an unguarded backend: one attempt, errors propagate.
func noRetry() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 1,
		Strategy:    &ExponentialBackoff{Initial: time.Second},
	}
}
