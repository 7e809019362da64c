/*
Package uncertainty provides probability distributions that can be loaded into
a quantum register. Each model discretises its distribution onto the 2^n basis
states of its target qubits and knows how to append the gates that prepare
that state to a circuit.
*/
package uncertainty

import (
	"errors"
	"fmt"

	"github.com/theapemachine/qvar/circuit"
)

var ErrInvalidModel = errors.New("uncertainty: invalid model parameters")

/*
Model is the capability every distribution shares: it occupies a number of
target qubits and can build its state preparation onto them.
*/
type Model interface {
	NumTargetQubits() int
	Build(c *circuit.Circuit, qubits []int) error
}

/*
Univariate is a distribution over one variable, discretised onto NumValues()
grid points spanning [Low(), High()].
*/
type Univariate interface {
	Model
	Low() float64
	High() float64
	NumValues() int
	Values() []float64
	Probabilities() []float64
}

/*
Multivariate is a joint distribution over Dimension() variables. Dimension i
takes NumQubits()[i] qubits; grid points are enumerated with dimension 0 on
the least significant qubits.
*/
type Multivariate interface {
	Model
	Dimension() int
	NumQubits() []int
	Lows() []float64
	Highs() []float64
	Values() [][]float64
	Probabilities() []float64
}

// Expectation returns the mean of a univariate model over its grid.
func Expectation(u Univariate) float64 {
	values := u.Values()
	var mean float64
	for i, p := range u.Probabilities() {
		mean += p * values[i]
	}
	return mean
}

func checkTargets(name string, want int, qubits []int) error {
	if len(qubits) != want {
		return fmt.Errorf("%w: %s needs %d target qubits, got %d", ErrInvalidModel, name, want, len(qubits))
	}
	return nil
}
