package uncertainty

import (
	"github.com/theapemachine/qvar/circuit"
	"gonum.org/v1/gonum/stat/distuv"
)

// Uniform spreads equal mass over the grid on [low, high].
type Uniform struct {
	univariate
}

func NewUniform(numQubits int, low, high float64) (*Uniform, error) {
	base, err := newUnivariate("uniform", numQubits, low, high)
	if err != nil {
		return nil, err
	}

	u := &Uniform{univariate: base}
	dist := distuv.Uniform{Min: low, Max: high}

	if err := u.fromDensity(dist.Prob); err != nil {
		return nil, err
	}
	return u, nil
}

// Build puts every target qubit in equal superposition.
func (u *Uniform) Build(c *circuit.Circuit, qubits []int) error {
	if err := checkTargets(u.name, u.numQubits, qubits); err != nil {
		return err
	}
	for _, q := range qubits {
		c.H(q)
	}
	return nil
}
