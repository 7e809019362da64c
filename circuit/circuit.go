package circuit

import (
	"fmt"
	"math"
)

// Gate names understood by backends.
const (
	GateH          = "h"
	GateU1         = "u1"
	GateRY         = "ry"
	GateRZ         = "rz"
	GateCX         = "cx"
	GateCZ         = "cz"
	GateInitialize = "initialize"
	GateBarrier    = "barrier"
	GateMeasure    = "measure"
)

/*
Gate is a single instruction of a circuit description. Params holds rotation
angles, or amplitudes for an initialize instruction.
*/
type Gate struct {
	Name   string
	Qubits []int
	Params []float64
}

/*
Circuit is the description handed to a Backend. It carries no execution
state, so the same circuit can be submitted any number of times.

CouplingMap and InitialLayout describe the device connectivity the circuit
should respect. They are passed through untouched; mapping onto the device is
the backend's business.
*/
type Circuit struct {
	Name          string
	NumQubits     int
	Gates         []Gate
	CouplingMap   [][2]int
	InitialLayout map[int]int
}

func New(name string, numQubits int) *Circuit {
	return &Circuit{
		Name:      name,
		NumQubits: numQubits,
		Gates:     make([]Gate, 0, 8*numQubits),
	}
}

func (c *Circuit) add(name string, params []float64, qubits ...int) *Circuit {
	c.Gates = append(c.Gates, Gate{Name: name, Qubits: qubits, Params: params})
	return c
}

func (c *Circuit) H(q int) *Circuit {
	return c.add(GateH, nil, q)
}

func (c *Circuit) U1(theta float64, q int) *Circuit {
	return c.add(GateU1, []float64{theta}, q)
}

func (c *Circuit) RY(theta float64, q int) *Circuit {
	return c.add(GateRY, []float64{theta}, q)
}

func (c *Circuit) RZ(theta float64, q int) *Circuit {
	return c.add(GateRZ, []float64{theta}, q)
}

func (c *Circuit) CX(control, target int) *Circuit {
	return c.add(GateCX, nil, control, target)
}

func (c *Circuit) CZ(control, target int) *Circuit {
	return c.add(GateCZ, nil, control, target)
}

func (c *Circuit) Barrier() *Circuit {
	qubits := make([]int, c.NumQubits)
	for i := range qubits {
		qubits[i] = i
	}
	return c.add(GateBarrier, nil, qubits...)
}

// Initialize prepares the given qubits in the state with the given amplitudes.
// len(amplitudes) must be 2^len(qubits).
func (c *Circuit) Initialize(amplitudes []float64, qubits ...int) *Circuit {
	params := make([]float64, len(amplitudes))
	copy(params, amplitudes)
	return c.add(GateInitialize, params, qubits...)
}

func (c *Circuit) MeasureAll() *Circuit {
	for q := 0; q < c.NumQubits; q++ {
		c.add(GateMeasure, nil, q)
	}
	return c
}

// Measured reports whether every qubit carries a measurement.
func (c *Circuit) Measured() bool {
	seen := make(map[int]bool, c.NumQubits)
	for _, g := range c.Gates {
		if g.Name == GateMeasure {
			seen[g.Qubits[0]] = true
		}
	}
	return len(seen) == c.NumQubits
}

// Validate checks qubit indices and initialize amplitudes.
func (c *Circuit) Validate() error {
	if c.NumQubits < 1 {
		return fmt.Errorf("%w: circuit %q has %d qubits", ErrInvalidCircuit, c.Name, c.NumQubits)
	}

	for i, g := range c.Gates {
		for _, q := range g.Qubits {
			if q < 0 || q >= c.NumQubits {
				return fmt.Errorf(
					"%w: gate %d (%s) addresses qubit %d of %d",
					ErrInvalidCircuit, i, g.Name, q, c.NumQubits,
				)
			}
		}

		if g.Name != GateInitialize {
			continue
		}

		if len(g.Params) != 1<<len(g.Qubits) {
			return fmt.Errorf(
				"%w: initialize on %d qubits needs %d amplitudes, got %d",
				ErrInvalidCircuit, len(g.Qubits), 1<<len(g.Qubits), len(g.Params),
			)
		}

		var norm float64
		for _, a := range g.Params {
			norm += a * a
		}
		if math.Abs(norm-1) > 1e-6 {
			return fmt.Errorf("%w: initialize amplitudes have norm %v", ErrInvalidCircuit, norm)
		}
	}

	return nil
}
