package qvar

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/theapemachine/qvar/circuit"
)

var errAllBusy = errors.New("qvar: every backend is at capacity")

/*
BalancedBackend spreads submissions over several backends. Each submission goes
to the backend with the fewest circuits in flight; ties go to the backend with
the lowest observed latency, and a backend that has not answered yet counts as
the fastest so every backend gets tried. When every backend holds capacity
circuits, Submit waits for one to free up.
*/
type BalancedBackend struct {
	mu       sync.Mutex
	backends []circuit.Backend
	loads    []int
	latency  []time.Duration
	capacity int
	wait     time.Duration
	metrics  *Metrics
}

func NewBalancedBackend(capacity int, backends ...circuit.Backend) *BalancedBackend {
	return &BalancedBackend{
		backends: backends,
		loads:    make([]int, len(backends)),
		latency:  make([]time.Duration, len(backends)),
		capacity: max(1, capacity),
		wait:     time.Millisecond,
		metrics:  NewMetrics(),
	}
}

func (lb *BalancedBackend) Observe(metrics *Metrics) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.metrics = metrics
}

// Limit reports whether every backend is at capacity.
func (lb *BalancedBackend) Limit() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	for _, load := range lb.loads {
		if load < lb.capacity {
			return false
		}
	}
	return true
}

// Renormalize clamps loads that drifted outside [0, capacity].
func (lb *BalancedBackend) Renormalize() {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	for i, load := range lb.loads {
		lb.loads[i] = min(max(load, 0), lb.capacity)
	}
}

func (lb *BalancedBackend) Submit(ctx context.Context, c *circuit.Circuit, shots int) (circuit.Counts, error) {
	if len(lb.backends) == 0 {
		return nil, ErrBackendUnavailable
	}

	idx, err := lb.acquire()
	for errors.Is(err, errAllBusy) {
		if err := sleep(ctx, lb.wait); err != nil {
			return nil, err
		}
		idx, err = lb.acquire()
	}

	startTime := time.Now()
	counts, err := lb.backends[idx].Submit(ctx, c, shots)
	lb.release(idx, time.Since(startTime))
	lb.metrics.recordSubmission(startTime, err == nil)

	return counts, err
}

// Loads returns the circuits currently in flight per backend.
func (lb *BalancedBackend) Loads() []int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return append([]int(nil), lb.loads...)
}

// acquire picks a backend and books a slot on it.
func (lb *BalancedBackend) acquire() (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	selected := -1

	for i, load := range lb.loads {
		if load >= lb.capacity {
			continue
		}

		if selected == -1 || load < lb.loads[selected] {
			selected = i
			continue
		}

		if load == lb.loads[selected] && lb.latency[i] < lb.latency[selected] {
			selected = i
		}
	}

	if selected == -1 {
		return -1, errAllBusy
	}

	lb.loads[selected]++
	return selected, nil
}

func (lb *BalancedBackend) release(idx int, duration time.Duration) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.loads[idx] = max(lb.loads[idx]-1, 0)

	// Moving average, weighted towards history.
	if lb.latency[idx] == 0 {
		lb.latency[idx] = duration
	} else {
		lb.latency[idx] = (lb.latency[idx]*4 + duration) / 5
	}
}
