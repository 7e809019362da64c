package circuit

import (
	"fmt"
	"math"
)

// ParameterCount is the length of the variational parameter vector for the
// given register size and depth: one RY and one RZ angle per qubit per layer.
func ParameterCount(numQubits, depth int) int {
	return 2 * numQubits * (depth + 1)
}

/*
FeatureMap appends the second-order Pauli-Z feature map for x, repeated twice.
Each repetition puts every qubit in superposition, rotates qubit i by 2·x[i],
and imprints the pairwise products (π−x[i])(π−x[j]) on the entangled pairs.
*/
func FeatureMap(c *Circuit, x []float64, em EntanglerMap) error {
	if len(x) != c.NumQubits {
		return fmt.Errorf("%w: %d features for %d qubits", ErrFeatureDimension, len(x), c.NumQubits)
	}

	pairs := em.Pairs()

	for rep := 0; rep < 2; rep++ {
		for q := 0; q < c.NumQubits; q++ {
			c.H(q)
			c.U1(2*x[q], q)
		}

		for _, p := range pairs {
			c.CX(p[0], p[1])
			c.U1(2*(math.Pi-x[p[0]])*(math.Pi-x[p[1]]), p[1])
			c.CX(p[0], p[1])
		}
	}

	return nil
}

/*
VariationalForm appends depth+1 layers of RY/RZ rotations driven by theta, with
a CZ entangling layer between consecutive rotation layers. Qubits maps logical
qubit i of the form onto a circuit qubit, which lets uncertainty models place
the form on a sub-register; nil means the identity layout.
*/
func VariationalForm(c *Circuit, theta []float64, depth int, em EntanglerMap, qubits []int) error {
	if qubits == nil {
		qubits = make([]int, c.NumQubits)
		for i := range qubits {
			qubits[i] = i
		}
	}

	n := len(qubits)
	if want := ParameterCount(n, depth); len(theta) != want {
		return fmt.Errorf("%w: want %d, got %d", ErrParameterLength, want, len(theta))
	}

	pairs := em.Pairs()

	for layer := 0; layer <= depth; layer++ {
		if layer > 0 {
			for _, p := range pairs {
				c.CZ(qubits[p[0]], qubits[p[1]])
			}
		}

		for q := 0; q < n; q++ {
			idx := 2 * (n*layer + q)
			c.RY(theta[idx], qubits[q])
			c.RZ(theta[idx+1], qubits[q])
		}
	}

	return nil
}

// Classifier builds the measured circuit scoring one feature vector under theta.
func Classifier(name string, x, theta []float64, numQubits, depth int, em EntanglerMap) (*Circuit, error) {
	c := New(name, numQubits)

	if err := FeatureMap(c, x, em); err != nil {
		return nil, err
	}

	c.Barrier()

	if err := VariationalForm(c, theta, depth, em, nil); err != nil {
		return nil, err
	}

	return c.MeasureAll(), nil
}
