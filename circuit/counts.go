package circuit

import (
	"fmt"
	"math/bits"
	"math/rand/v2"
	"strconv"
)

/*
Counts holds measurement outcomes keyed by bitstring. Qubit 0 is the rightmost
character, so "01" means qubit 0 measured 1 and qubit 1 measured 0.
*/
type Counts map[string]int

func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Probabilities normalises the counts. An empty result yields an empty map.
func (c Counts) Probabilities() map[string]float64 {
	total := c.Total()
	probs := make(map[string]float64, len(c))
	if total == 0 {
		return probs
	}
	for k, n := range c {
		probs[k] = float64(n) / float64(total)
	}
	return probs
}

func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Weight returns the Hamming weight of a measured bitstring.
func Weight(bitstring string) (int, error) {
	v, err := strconv.ParseUint(bitstring, 2, 64)
	if err != nil {
		return 0, fmt.Errorf("circuit: bad bitstring %q: %w", bitstring, err)
	}
	return bits.OnesCount64(v), nil
}

// Index turns a bitstring into the basis state index it names.
func Index(bitstring string) (int, error) {
	v, err := strconv.ParseUint(bitstring, 2, 64)
	if err != nil {
		return 0, fmt.Errorf("circuit: bad bitstring %q: %w", bitstring, err)
	}
	return int(v), nil
}

// Bitstring formats basis state index i over n qubits.
func Bitstring(i, n int) string {
	return fmt.Sprintf("%0*b", n, i)
}

/*
SampleCounts draws shots outcomes from a distribution over the 2^n basis
states of an n-qubit register. Each shot picks the first state whose
cumulative probability covers a uniform draw. The probabilities need not be
normalised.
*/
func SampleCounts(probs []float64, numQubits, shots int, rng *rand.Rand) (Counts, error) {
	if len(probs) != 1<<numQubits {
		return nil, fmt.Errorf(
			"%w: %d probabilities for %d qubits", ErrInvalidCircuit, len(probs), numQubits,
		)
	}

	total := 0.0
	cumulative := make([]float64, len(probs))
	for i, p := range probs {
		if p < 0 {
			return nil, fmt.Errorf("%w: negative probability at %d", ErrInvalidCircuit, i)
		}
		total += p
		cumulative[i] = total
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: probabilities sum to zero", ErrInvalidCircuit)
	}

	counts := make(Counts)
	for s := 0; s < shots; s++ {
		r := rng.Float64() * total
		measured := len(probs) - 1
		for i, threshold := range cumulative {
			if r <= threshold {
				measured = i
				break
			}
		}
		counts[Bitstring(measured, numQubits)]++
	}

	return counts, nil
}
