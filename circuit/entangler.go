package circuit

import (
	"fmt"
	"sort"
)

/*
EntanglerMap lists, per control qubit, the target qubits it is entangled with.
It is derived once from the qubit count and only read afterwards.
*/
type EntanglerMap map[int][]int

/*
NewEntanglerMap returns the entangling layout for n qubits. Small registers use
hand-picked layouts that fit the devices they were tuned for; anything larger
falls back to a linear nearest-neighbour chain.
*/
func NewEntanglerMap(n int) (EntanglerMap, error) {
	switch {
	case n < 2:
		return nil, fmt.Errorf("%w: need at least 2 qubits, got %d", ErrInvalidEntangler, n)
	case n == 2:
		return EntanglerMap{0: {1}}, nil
	case n == 3:
		return EntanglerMap{0: {2, 1}, 1: {2}}, nil
	case n == 4:
		return EntanglerMap{0: {2}, 1: {0, 2, 3}, 2: {3}}, nil
	}

	em := make(EntanglerMap, n-1)
	for i := 0; i < n-1; i++ {
		em[i] = []int{i + 1}
	}
	return em, nil
}

// Pairs flattens the map into (control, target) pairs ordered by control.
func (em EntanglerMap) Pairs() [][2]int {
	controls := make([]int, 0, len(em))
	for c := range em {
		controls = append(controls, c)
	}
	sort.Ints(controls)

	pairs := make([][2]int, 0, len(em))
	for _, c := range controls {
		for _, t := range em[c] {
			pairs = append(pairs, [2]int{c, t})
		}
	}
	return pairs
}

// Validate checks that every pair addresses two distinct qubits below n.
func (em EntanglerMap) Validate(n int) error {
	for _, p := range em.Pairs() {
		if p[0] == p[1] || p[0] < 0 || p[1] < 0 || p[0] >= n || p[1] >= n {
			return fmt.Errorf("%w: pair %v on %d qubits", ErrInvalidEntangler, p, n)
		}
	}
	return nil
}
