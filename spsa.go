package qvar

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/theapemachine/errnie"
	"gonum.org/v1/gonum/floats"
)

/*
SPSAParameters are the gain sequence hyperparameters of the optimizer.
A and C scale the step size and the perturbation size, Alpha and Gamma set how
fast each decays, and Stability delays the step size decay in early
iterations. Values are copied into the optimizer and never change during a
run.
*/
type SPSAParameters struct {
	A         float64
	C         float64
	Alpha     float64
	Gamma     float64
	Stability float64
}

// DefaultSPSAParameters returns the precomputed gains used when calibration
// is skipped.
func DefaultSPSAParameters() SPSAParameters {
	return SPSAParameters{
		A:         4.0,
		C:         0.1,
		Alpha:     0.602,
		Gamma:     0.101,
		Stability: 0,
	}
}

func (p SPSAParameters) Validate() error {
	switch {
	case p.A <= 0 || math.IsInf(p.A, 0) || math.IsNaN(p.A):
		return fmt.Errorf("%w: spsa a must be positive and finite, got %v", ErrConfiguration, p.A)
	case p.C <= 0 || math.IsInf(p.C, 0) || math.IsNaN(p.C):
		return fmt.Errorf("%w: spsa c must be positive and finite, got %v", ErrConfiguration, p.C)
	case p.Alpha < 0 || p.Gamma < 0 || p.Stability < 0:
		return fmt.Errorf("%w: spsa alpha, gamma and A must not be negative", ErrConfiguration)
	}
	return nil
}

// StepSizes returns a_k and c_k for iteration k, counting from zero.
func (p SPSAParameters) StepSizes(k int) (ak, ck float64) {
	ak = p.A / math.Pow(float64(k)+1+p.Stability, p.Alpha)
	ck = p.C / math.Pow(float64(k)+1, p.Gamma)
	return ak, ck
}

// CostFunc evaluates the objective at theta. Implementations must not keep
// or modify theta.
type CostFunc func(ctx context.Context, theta []float64) (CostSample, error)

// Iteration is a progress record saved every saveSteps iterations.
type Iteration struct {
	K         int
	StepSize  float64
	Perturb   float64
	CostPlus  float64
	CostMinus float64
}

/*
TrainingResult is the outcome of an optimizer run. Theta is the best parameter
vector seen and Final its cost sample; Plus and Minus are the two samples of
the last iteration.
*/
type TrainingResult struct {
	Theta       []float64
	BestCost    float64
	Final       CostSample
	Plus        CostSample
	Minus       CostSample
	Iterations  int
	Evaluations int
	History     []Iteration
}

// Costs returns the final, plus and minus costs in that order.
func (tr *TrainingResult) Costs() [3]float64 {
	return [3]float64{tr.Final.Cost, tr.Plus.Cost, tr.Minus.Cost}
}

/*
SPSAOptimizer minimises a noisy cost function by simultaneous perturbation
stochastic approximation. Each iteration perturbs every parameter at once by
±c_k, estimates the gradient from the two resulting costs, and steps against
it by a_k. The loop always runs maxTrials iterations; there is no early
stopping.
*/
type SPSAOptimizer struct {
	params    SPSAParameters
	maxTrials int
	saveSteps int
	rng       *rand.Rand
}

type SPSAOption func(*SPSAOptimizer)

// WithRand sets the source of the perturbation directions.
func WithRand(rng *rand.Rand) SPSAOption {
	return func(o *SPSAOptimizer) {
		o.rng = rng
	}
}

func WithSeed(seed uint64) SPSAOption {
	return WithRand(newRand(seed))
}

func WithSaveSteps(steps int) SPSAOption {
	return func(o *SPSAOptimizer) {
		o.saveSteps = steps
	}
}

func NewSPSAOptimizer(params SPSAParameters, maxTrials int, opts ...SPSAOption) (*SPSAOptimizer, error) {
	o := &SPSAOptimizer{
		params:    params,
		maxTrials: maxTrials,
		saveSteps: 10,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.rng == nil {
		o.rng = newRand(0)
	}

	if o.maxTrials < 1 {
		return nil, fmt.Errorf("%w: max trials must be at least 1, got %d", ErrConfiguration, o.maxTrials)
	}
	if o.saveSteps < 1 {
		return nil, fmt.Errorf("%w: save steps must be at least 1, got %d", ErrConfiguration, o.saveSteps)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return o, nil
}

func (o *SPSAOptimizer) Parameters() SPSAParameters {
	return o.params
}

// Perturbation draws a direction with independent ±1 entries.
func (o *SPSAOptimizer) Perturbation(n int) []float64 {
	return perturbation(o.rng, n)
}

/*
Optimize runs the optimizer from initial, which it does not modify. The best
vector is the perturbed point (plus or minus) with the lowest cost observed
over the whole run; it is returned even when later iterations do worse.

Any error from f aborts the run. Non-finite costs are not detected and flow
into the parameter vector.
*/
func (o *SPSAOptimizer) Optimize(ctx context.Context, f CostFunc, initial []float64) (*TrainingResult, error) {
	if len(initial) == 0 {
		return nil, fmt.Errorf("%w: empty initial parameter vector", ErrConfiguration)
	}

	n := len(initial)
	theta := append([]float64(nil), initial...)
	gradient := make([]float64, n)

	result := &TrainingResult{
		BestCost: math.Inf(1),
		History:  make([]Iteration, 0, o.maxTrials/o.saveSteps+1),
	}

	for k := 0; k < o.maxTrials; k++ {
		ak, ck := o.params.StepSizes(k)
		delta := o.Perturbation(n)

		thetaPlus := floats.AddScaledTo(make([]float64, n), theta, ck, delta)
		thetaMinus := floats.AddScaledTo(make([]float64, n), theta, -ck, delta)

		plus, err := f(ctx, thetaPlus)
		if err != nil {
			return nil, fmt.Errorf("spsa iteration %d (plus): %w", k, err)
		}
		minus, err := f(ctx, thetaMinus)
		if err != nil {
			return nil, fmt.Errorf("spsa iteration %d (minus): %w", k, err)
		}
		result.Evaluations += 2

		scale := (plus.Cost - minus.Cost) / (2 * ck)
		for i := range gradient {
			gradient[i] = scale / delta[i]
		}
		floats.AddScaled(theta, -ak, gradient)

		if plus.Cost < result.BestCost {
			result.BestCost, result.Theta, result.Final = plus.Cost, thetaPlus, plus
		}
		if minus.Cost < result.BestCost {
			result.BestCost, result.Theta, result.Final = minus.Cost, thetaMinus, minus
		}

		result.Plus, result.Minus = plus, minus
		result.Iterations = k + 1

		if k%o.saveSteps == 0 {
			result.History = append(result.History, Iteration{
				K:         k,
				StepSize:  ak,
				Perturb:   ck,
				CostPlus:  plus.Cost,
				CostMinus: minus.Cost,
			})
			errnie.Info(
				"spsa iteration %d - cost+ %.6f, cost- %.6f, a_k %.6f, c_k %.6f",
				k, plus.Cost, minus.Cost, ak, ck,
			)
		}
	}

	// NaN costs never compare lower and leave no best point behind.
	if result.Theta == nil {
		result.Theta = theta
		result.BestCost = result.Plus.Cost
		result.Final = result.Plus
	}

	return result, nil
}

func perturbation(rng *rand.Rand, n int) []float64 {
	delta := make([]float64, n)
	for i := range delta {
		delta[i] = float64(2*rng.IntN(2) - 1)
	}
	return delta
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
