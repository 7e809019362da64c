package uncertainty

import (
	"fmt"
	"math"

	"github.com/theapemachine/qvar/circuit"
	"gonum.org/v1/gonum/floats"
)

// univariate holds the discretised state shared by every one-variable model.
type univariate struct {
	name          string
	numQubits     int
	low, high     float64
	probabilities []float64
}

func newUnivariate(name string, numQubits int, low, high float64) (univariate, error) {
	if numQubits < 1 {
		return univariate{}, fmt.Errorf("%w: %s needs at least one qubit", ErrInvalidModel, name)
	}
	if !(low < high) {
		return univariate{}, fmt.Errorf("%w: %s low %v must be below high %v", ErrInvalidModel, name, low, high)
	}
	return univariate{name: name, numQubits: numQubits, low: low, high: high}, nil
}

func (u *univariate) NumTargetQubits() int { return u.numQubits }
func (u *univariate) Low() float64         { return u.low }
func (u *univariate) High() float64        { return u.high }
func (u *univariate) NumValues() int       { return 1 << u.numQubits }

func (u *univariate) Values() []float64 {
	return grid(u.low, u.high, u.NumValues())
}

func (u *univariate) Probabilities() []float64 {
	out := make([]float64, len(u.probabilities))
	copy(out, u.probabilities)
	return out
}

// fromDensity evaluates pdf on the grid and normalises the result.
func (u *univariate) fromDensity(pdf func(float64) float64) error {
	values := u.Values()
	probs := make([]float64, len(values))
	for i, x := range values {
		probs[i] = pdf(x)
	}
	return u.setProbabilities(probs)
}

func (u *univariate) setProbabilities(probs []float64) error {
	normalised, err := normalise(probs)
	if err != nil {
		return fmt.Errorf("%s: %w", u.name, err)
	}
	u.probabilities = normalised
	return nil
}

// Build loads the discretised distribution with an initialize instruction
// whose amplitudes are the square roots of the probabilities.
func (u *univariate) Build(c *circuit.Circuit, qubits []int) error {
	if err := checkTargets(u.name, u.numQubits, qubits); err != nil {
		return err
	}
	c.Initialize(amplitudes(u.probabilities), qubits...)
	return nil
}

func grid(low, high float64, n int) []float64 {
	if n == 1 {
		return []float64{low}
	}
	return floats.Span(make([]float64, n), low, high)
}

func normalise(probs []float64) ([]float64, error) {
	for i, p := range probs {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: probability %d is %v", ErrInvalidModel, i, p)
		}
	}

	total := floats.Sum(probs)
	if total == 0 {
		return nil, fmt.Errorf("%w: distribution has no mass on the grid", ErrInvalidModel)
	}

	out := make([]float64, len(probs))
	copy(out, probs)
	floats.Scale(1/total, out)
	return out, nil
}

func amplitudes(probs []float64) []float64 {
	amps := make([]float64, len(probs))
	for i, p := range probs {
		amps[i] = math.Sqrt(p)
	}
	return amps
}
