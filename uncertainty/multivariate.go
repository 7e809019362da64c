package uncertainty

import (
	"fmt"

	"github.com/theapemachine/qvar/circuit"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

type multivariate struct {
	name          string
	numQubits     []int
	lows, highs   []float64
	probabilities []float64
}

func newMultivariate(name string, numQubits []int, lows, highs []float64) (multivariate, error) {
	d := len(numQubits)
	if d < 1 {
		return multivariate{}, fmt.Errorf("%w: %s needs at least one dimension", ErrInvalidModel, name)
	}
	if len(lows) != d || len(highs) != d {
		return multivariate{}, fmt.Errorf(
			"%w: %s has %d dimensions but %d lows and %d highs",
			ErrInvalidModel, name, d, len(lows), len(highs),
		)
	}

	for i := range numQubits {
		if numQubits[i] < 1 {
			return multivariate{}, fmt.Errorf("%w: %s dimension %d has no qubits", ErrInvalidModel, name, i)
		}
		if !(lows[i] < highs[i]) {
			return multivariate{}, fmt.Errorf(
				"%w: %s dimension %d low %v must be below high %v",
				ErrInvalidModel, name, i, lows[i], highs[i],
			)
		}
	}

	return multivariate{
		name:      name,
		numQubits: append([]int(nil), numQubits...),
		lows:      append([]float64(nil), lows...),
		highs:     append([]float64(nil), highs...),
	}, nil
}

func (m *multivariate) Dimension() int   { return len(m.numQubits) }
func (m *multivariate) NumQubits() []int { return append([]int(nil), m.numQubits...) }
func (m *multivariate) Lows() []float64  { return append([]float64(nil), m.lows...) }
func (m *multivariate) Highs() []float64 { return append([]float64(nil), m.highs...) }

func (m *multivariate) NumTargetQubits() int {
	total := 0
	for _, n := range m.numQubits {
		total += n
	}
	return total
}

func (m *multivariate) Probabilities() []float64 {
	return append([]float64(nil), m.probabilities...)
}

// Values enumerates the joint grid. Point i takes its coordinate in dimension
// d from the bits of i that belong to d's qubits.
func (m *multivariate) Values() [][]float64 {
	axes := make([][]float64, len(m.numQubits))
	for d, n := range m.numQubits {
		axes[d] = grid(m.lows[d], m.highs[d], 1<<n)
	}

	points := make([][]float64, 1<<m.NumTargetQubits())
	for i := range points {
		point := make([]float64, len(axes))
		shift := 0
		for d, n := range m.numQubits {
			point[d] = axes[d][(i>>shift)&(1<<n - 1)]
			shift += n
		}
		points[i] = point
	}
	return points
}

func (m *multivariate) fromDensity(pdf func([]float64) float64) error {
	points := m.Values()
	probs := make([]float64, len(points))
	for i, x := range points {
		probs[i] = pdf(x)
	}
	return m.setProbabilities(probs)
}

func (m *multivariate) setProbabilities(probs []float64) error {
	normalised, err := normalise(probs)
	if err != nil {
		return fmt.Errorf("%s: %w", m.name, err)
	}
	m.probabilities = normalised
	return nil
}

func (m *multivariate) Build(c *circuit.Circuit, qubits []int) error {
	if err := checkTargets(m.name, m.NumTargetQubits(), qubits); err != nil {
		return err
	}
	c.Initialize(amplitudes(m.probabilities), qubits...)
	return nil
}

// MultivariateNormal is a Gaussian with mean mu and covariance sigma,
// truncated to the box spanned by lows and highs.
type MultivariateNormal struct {
	multivariate
	mu    []float64
	sigma *mat.SymDense
}

func NewMultivariateNormal(numQubits []int, mu []float64, sigma [][]float64, lows, highs []float64) (*MultivariateNormal, error) {
	base, err := newMultivariate("multivariate normal", numQubits, lows, highs)
	if err != nil {
		return nil, err
	}

	d := len(numQubits)
	if len(mu) != d || len(sigma) != d {
		return nil, fmt.Errorf("%w: mean and covariance must have %d dimensions", ErrInvalidModel, d)
	}

	cov := mat.NewSymDense(d, nil)
	for i := range sigma {
		if len(sigma[i]) != d {
			return nil, fmt.Errorf("%w: covariance row %d has %d entries", ErrInvalidModel, i, len(sigma[i]))
		}
		for j := i; j < d; j++ {
			if sigma[i][j] != sigma[j][i] {
				return nil, fmt.Errorf("%w: covariance is not symmetric at (%d, %d)", ErrInvalidModel, i, j)
			}
			cov.SetSym(i, j, sigma[i][j])
		}
	}

	dist, ok := distmv.NewNormal(mu, cov, nil)
	if !ok {
		return nil, fmt.Errorf("%w: covariance is not positive definite", ErrInvalidModel)
	}

	mn := &MultivariateNormal{
		multivariate: base,
		mu:           append([]float64(nil), mu...),
		sigma:        cov,
	}

	if err := mn.fromDensity(dist.Prob); err != nil {
		return nil, err
	}
	return mn, nil
}

func (mn *MultivariateNormal) Mu() []float64 { return append([]float64(nil), mn.mu...) }

func (mn *MultivariateNormal) Sigma() mat.Symmetric { return mn.sigma }

// MultivariateUniform spreads equal mass over the joint grid.
type MultivariateUniform struct {
	multivariate
}

func NewMultivariateUniform(numQubits []int, lows, highs []float64) (*MultivariateUniform, error) {
	base, err := newMultivariate("multivariate uniform", numQubits, lows, highs)
	if err != nil {
		return nil, err
	}

	mu := &MultivariateUniform{multivariate: base}
	if err := mu.fromDensity(func([]float64) float64 { return 1 }); err != nil {
		return nil, err
	}
	return mu, nil
}

func (mu *MultivariateUniform) Build(c *circuit.Circuit, qubits []int) error {
	if err := checkTargets(mu.name, mu.NumTargetQubits(), qubits); err != nil {
		return err
	}
	for _, q := range qubits {
		c.H(q)
	}
	return nil
}
