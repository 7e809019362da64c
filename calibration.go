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
SPSACalibrator picks the step size gain a from the cost landscape around the
starting point. It samples stat random perturbations of size c, measures the
mean absolute cost difference between the two sides, and sizes a so that the
first update moves the parameters by roughly target.
*/
type SPSACalibrator struct {
	c      float64
	target float64
	stat   int
	rng    *rand.Rand
}

func NewSPSACalibrator(c, target float64, stat int, rng *rand.Rand) (*SPSACalibrator, error) {
	if c <= 0 || target <= 0 || stat < 1 {
		return nil, fmt.Errorf(
			"%w: calibration needs positive c, target and stat (got %v, %v, %d)",
			ErrConfiguration, c, target, stat,
		)
	}
	if rng == nil {
		rng = newRand(0)
	}
	return &SPSACalibrator{c: c, target: target, stat: stat, rng: rng}, nil
}

// Calibrate spends 2·stat cost evaluations and returns the gains to train with.
func (cal *SPSACalibrator) Calibrate(ctx context.Context, f CostFunc, theta []float64) (SPSAParameters, error) {
	params := SPSAParameters{
		C:         cal.c,
		Alpha:     0.602,
		Gamma:     0.101,
		Stability: 0,
	}

	n := len(theta)
	var spread float64

	for i := 0; i < cal.stat; i++ {
		if i%5 == 0 {
			errnie.Info("spsa calibration sample %d of %d", i, cal.stat)
		}

		delta := perturbation(cal.rng, n)

		plus, err := f(ctx, floats.AddScaledTo(make([]float64, n), theta, cal.c, delta))
		if err != nil {
			return SPSAParameters{}, fmt.Errorf("spsa calibration sample %d: %w", i, err)
		}
		minus, err := f(ctx, floats.AddScaledTo(make([]float64, n), theta, -cal.c, delta))
		if err != nil {
			return SPSAParameters{}, fmt.Errorf("spsa calibration sample %d: %w", i, err)
		}

		spread += math.Abs(plus.Cost-minus.Cost) / float64(cal.stat)
	}

	if spread == 0 || math.IsNaN(spread) || math.IsInf(spread, 0) {
		return SPSAParameters{}, fmt.Errorf("%w: mean cost spread is %v", ErrDegenerateCost, spread)
	}

	params.A = cal.target * 2 / spread * params.C * (params.Stability + 1)
	errnie.Info("spsa calibration - spread %.6f, a %.6f", spread, params.A)

	return params, nil
}
