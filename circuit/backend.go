package circuit

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
)

/*
Backend executes a circuit description for the given number of shots and
returns the measurement counts. Implementations must treat every call as an
independent round trip: nothing left over from an earlier submission may
influence a later one.
*/
type Backend interface {
	Submit(ctx context.Context, c *Circuit, shots int) (Counts, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, c *Circuit, shots int) (Counts, error)

func (f BackendFunc) Submit(ctx context.Context, c *Circuit, shots int) (Counts, error) {
	return f(ctx, c, shots)
}

/*
FixedBackend answers every submission with the same counts, whatever the
circuit. It counts submissions so tests can assert on dispatch volume.
*/
type FixedBackend struct {
	Counts      Counts
	submissions atomic.Int64
}

func NewFixedBackend(counts Counts) *FixedBackend {
	return &FixedBackend{Counts: counts}
}

func (b *FixedBackend) Submit(ctx context.Context, c *Circuit, shots int) (Counts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.submissions.Add(1)
	return b.Counts.Clone(), nil
}

func (b *FixedBackend) Submissions() int {
	return int(b.submissions.Load())
}

/*
SamplingBackend draws shot counts from a caller supplied outcome model. It does
not simulate gates: Model decides the basis-state probabilities for a circuit,
which keeps tests in control of what the optimizer sees.
*/
type SamplingBackend struct {
	Model func(c *Circuit) []float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSamplingBackend(seed uint64, model func(c *Circuit) []float64) *SamplingBackend {
	return &SamplingBackend{
		Model: model,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (b *SamplingBackend) Submit(ctx context.Context, c *Circuit, shots int) (Counts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return SampleCounts(b.Model(c), c.NumQubits, shots, b.rng)
}
