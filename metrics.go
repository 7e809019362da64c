package qvar

import (
	"sort"
	"sync"
	"time"
)

/*
Metrics tracks the cost of talking to the backend: how many evaluations ran,
how many circuits they submitted, how many submissions failed, and the latency
distribution of the submissions over a sliding window.
*/
type Metrics struct {
	mu sync.RWMutex

	Evaluations        int64
	Submissions        int64
	SubmissionFailures int64
	RateLimitHits      int64
	LastCost           float64

	AverageLatency time.Duration
	P95Latency     time.Duration
	P99Latency     time.Duration

	latencies  []time.Duration
	windowSize int
}

func NewMetrics() *Metrics {
	return &Metrics{
		latencies:  make([]time.Duration, 0, 1000),
		windowSize: 1000,
	}
}

func (m *Metrics) recordSubmission(startTime time.Time, success bool) {
	duration := time.Since(startTime)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Submissions++
	if !success {
		m.SubmissionFailures++
	}

	m.updateLatencyPercentiles(duration)
}

func (m *Metrics) recordEvaluation(cost float64, hasCost bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Evaluations++
	if hasCost {
		m.LastCost = cost
	}
}

func (m *Metrics) recordRateLimit() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RateLimitHits++
}

func (m *Metrics) updateLatencyPercentiles(duration time.Duration) {
	m.AverageLatency = (m.AverageLatency*time.Duration(m.Submissions-1) + duration) / time.Duration(m.Submissions)

	m.latencies = append(m.latencies, duration)
	if len(m.latencies) > m.windowSize {
		m.latencies = m.latencies[1:]
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	p95Index := min(int(float64(len(sorted))*0.95), len(sorted)-1)
	p99Index := min(int(float64(len(sorted))*0.99), len(sorted)-1)

	m.P95Latency = sorted[p95Index]
	m.P99Latency = sorted[p99Index]
}

// SuccessRate is the fraction of submissions that returned counts.
func (m *Metrics) SuccessRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Submissions == 0 {
		return 1
	}
	return float64(m.Submissions-m.SubmissionFailures) / float64(m.Submissions)
}

func (m *Metrics) ExportMetrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]any{
		"evaluations":         m.Evaluations,
		"submissions":         m.Submissions,
		"submission_failures": m.SubmissionFailures,
		"rate_limit_hits":     m.RateLimitHits,
		"last_cost":           m.LastCost,
		"avg_latency":         m.AverageLatency.Milliseconds(),
		"p95_latency":         m.P95Latency.Milliseconds(),
		"p99_latency":         m.P99Latency.Milliseconds(),
	}
}
