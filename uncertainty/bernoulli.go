package uncertainty

import (
	"fmt"
	"math"

	"github.com/theapemachine/qvar/circuit"
	"gonum.org/v1/gonum/stat/distuv"
)

// Bernoulli takes value high with probability p and low otherwise, on a
// single qubit.
type Bernoulli struct {
	univariate
	p float64
}

func NewBernoulli(p, low, high float64) (*Bernoulli, error) {
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: bernoulli p must be in [0, 1], got %v", ErrInvalidModel, p)
	}

	base, err := newUnivariate("bernoulli", 1, low, high)
	if err != nil {
		return nil, err
	}

	b := &Bernoulli{univariate: base, p: p}
	dist := distuv.Bernoulli{P: p}

	if err := b.setProbabilities([]float64{dist.Prob(0), dist.Prob(1)}); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bernoulli) P() float64 { return b.p }

// Build rotates the target qubit so that it reads 1 with probability p.
func (b *Bernoulli) Build(c *circuit.Circuit, qubits []int) error {
	if err := checkTargets(b.name, 1, qubits); err != nil {
		return err
	}
	c.RY(2*math.Asin(math.Sqrt(b.p)), qubits[0])
	return nil
}
