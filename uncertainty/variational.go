package uncertainty

import (
	"context"
	"fmt"

	"github.com/theapemachine/qvar/circuit"
)

/*
UnivariateVariational is a distribution whose state is prepared by a
parameterised RY/RZ circuit instead of a closed-form density. Its
probabilities are unknown until SetProbabilities runs the circuit on a
backend.

An optional initial model is loaded onto the register before the
variational layers.
*/
type UnivariateVariational struct {
	univariate
	depth   int
	params  []float64
	initial Model
}

func NewUnivariateVariational(
	numQubits, depth int,
	params []float64,
	initial Model,
	low, high float64,
) (*UnivariateVariational, error) {
	base, err := newUnivariate("univariate variational", numQubits, low, high)
	if err != nil {
		return nil, err
	}
	if err := checkVariational(numQubits, depth, params, initial); err != nil {
		return nil, err
	}

	return &UnivariateVariational{
		univariate: base,
		depth:      depth,
		params:     append([]float64(nil), params...),
		initial:    initial,
	}, nil
}

func (uv *UnivariateVariational) Params() []float64 {
	return append([]float64(nil), uv.params...)
}

func (uv *UnivariateVariational) Build(c *circuit.Circuit, qubits []int) error {
	if err := checkTargets(uv.name, uv.numQubits, qubits); err != nil {
		return err
	}
	return buildVariational(c, qubits, uv.depth, uv.params, uv.initial)
}

// SetProbabilities executes the model on its own register and keeps the
// measured distribution.
func (uv *UnivariateVariational) SetProbabilities(ctx context.Context, backend circuit.Backend, shots int) error {
	probs, err := measure(ctx, backend, shots, uv.name, uv.numQubits, uv.Build)
	if err != nil {
		return err
	}
	return uv.setProbabilities(probs)
}

// MultivariateVariational is the joint counterpart of UnivariateVariational.
type MultivariateVariational struct {
	multivariate
	depth   int
	params  []float64
	initial Model
}

func NewMultivariateVariational(
	numQubits []int,
	depth int,
	params []float64,
	initial Model,
	lows, highs []float64,
) (*MultivariateVariational, error) {
	base, err := newMultivariate("multivariate variational", numQubits, lows, highs)
	if err != nil {
		return nil, err
	}
	if err := checkVariational(base.NumTargetQubits(), depth, params, initial); err != nil {
		return nil, err
	}

	return &MultivariateVariational{
		multivariate: base,
		depth:        depth,
		params:       append([]float64(nil), params...),
		initial:      initial,
	}, nil
}

func (mv *MultivariateVariational) Params() []float64 {
	return append([]float64(nil), mv.params...)
}

func (mv *MultivariateVariational) Build(c *circuit.Circuit, qubits []int) error {
	if err := checkTargets(mv.name, mv.NumTargetQubits(), qubits); err != nil {
		return err
	}
	return buildVariational(c, qubits, mv.depth, mv.params, mv.initial)
}

func (mv *MultivariateVariational) SetProbabilities(ctx context.Context, backend circuit.Backend, shots int) error {
	probs, err := measure(ctx, backend, shots, mv.name, mv.NumTargetQubits(), mv.Build)
	if err != nil {
		return err
	}
	return mv.setProbabilities(probs)
}

func checkVariational(n, depth int, params []float64, initial Model) error {
	if depth < 1 {
		return fmt.Errorf("%w: variational depth must be at least 1, got %d", ErrInvalidModel, depth)
	}
	if want := circuit.ParameterCount(n, depth); len(params) != want {
		return fmt.Errorf("%w: want %d parameters, got %d", ErrInvalidModel, want, len(params))
	}
	if initial != nil && initial.NumTargetQubits() != n {
		return fmt.Errorf(
			"%w: initial model spans %d qubits, register has %d",
			ErrInvalidModel, initial.NumTargetQubits(), n,
		)
	}
	return nil
}

// registerEntangler chains the register linearly; a single qubit has nothing
// to entangle.
func registerEntangler(n int) circuit.EntanglerMap {
	em := make(circuit.EntanglerMap, n)
	for i := 0; i < n-1; i++ {
		em[i] = []int{i + 1}
	}
	return em
}

func buildVariational(c *circuit.Circuit, qubits []int, depth int, params []float64, initial Model) error {
	if initial != nil {
		if err := initial.Build(c, qubits); err != nil {
			return err
		}
	}
	return circuit.VariationalForm(c, params, depth, registerEntangler(len(qubits)), qubits)
}

func measure(
	ctx context.Context,
	backend circuit.Backend,
	shots int,
	name string,
	n int,
	build func(*circuit.Circuit, []int) error,
) ([]float64, error) {
	qubits := make([]int, n)
	for i := range qubits {
		qubits[i] = i
	}

	c := circuit.New(name, n)
	if err := build(c, qubits); err != nil {
		return nil, err
	}
	c.MeasureAll()

	counts, err := backend.Submit(ctx, c, shots)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	probs := make([]float64, 1<<n)
	for bitstring, hits := range counts {
		idx, err := circuit.Index(bitstring)
		if err != nil {
			return nil, err
		}
		if idx >= len(probs) {
			return nil, fmt.Errorf("%w: outcome %q outside a %d qubit register", ErrInvalidModel, bitstring, n)
		}
		probs[idx] += float64(hits)
	}
	return probs, nil
}
