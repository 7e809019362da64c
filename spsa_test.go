package qvar

import (
	"context"
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func quadratic(target []float64) func([]float64) float64 {
	return func(theta []float64) float64 {
		var sum float64
		for i := range theta {
			d := theta[i] - target[i]
			sum += d * d
		}
		return sum
	}
}

func costOf(f func([]float64) float64, calls *int) CostFunc {
	return func(_ context.Context, theta []float64) (CostSample, error) {
		*calls++
		return CostSample{Cost: f(theta), HasCost: true}, nil
	}
}

func TestSPSAParameters(t *testing.T) {
	Convey("Given the default SPSA parameters", t, func() {
		p := DefaultSPSAParameters()

		So(p.Validate(), ShouldBeNil)
		So(p.A, ShouldEqual, 4.0)
		So(p.C, ShouldEqual, 0.1)
		So(p.Alpha, ShouldEqual, 0.602)
		So(p.Gamma, ShouldEqual, 0.101)
		So(p.Stability, ShouldEqual, 0.0)

		Convey("The step sizes should start at a and c", func() {
			ak, ck := p.StepSizes(0)
			So(ak, ShouldAlmostEqual, 4.0)
			So(ck, ShouldAlmostEqual, 0.1)
		})

		Convey("The step sizes should strictly decrease", func() {
			for k := 0; k < 200; k++ {
				ak, ck := p.StepSizes(k)
				nextA, nextC := p.StepSizes(k + 1)
				So(nextA, ShouldBeLessThan, ak)
				So(nextC, ShouldBeLessThan, ck)
			}
		})
	})

	Convey("Given invalid gains", t, func() {
		So(errors.Is(SPSAParameters{A: 0, C: 0.1}.Validate(), ErrConfiguration), ShouldBeTrue)
		So(errors.Is(SPSAParameters{A: 1, C: 0}.Validate(), ErrConfiguration), ShouldBeTrue)
		So(errors.Is(SPSAParameters{A: 1, C: 1, Alpha: -1}.Validate(), ErrConfiguration), ShouldBeTrue)
		So(errors.Is(SPSAParameters{A: math.Inf(1), C: 1}.Validate(), ErrConfiguration), ShouldBeTrue)
	})
}

func TestSPSAOptimizer(t *testing.T) {
	Convey("Given an SPSA optimizer", t, func() {
		ctx := context.Background()

		Convey("When max trials is below one", func() {
			_, err := NewSPSAOptimizer(DefaultSPSAParameters(), 0)
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
		})

		Convey("When drawing perturbations", func() {
			o, err := NewSPSAOptimizer(DefaultSPSAParameters(), 10, WithSeed(3))
			So(err, ShouldBeNil)

			seen := map[float64]int{}
			for i := 0; i < 50; i++ {
				for _, d := range o.Perturbation(40) {
					seen[d]++
				}
			}

			So(seen, ShouldHaveLength, 2)
			So(seen[1], ShouldBeGreaterThan, 0)
			So(seen[-1], ShouldBeGreaterThan, 0)
			So(seen[1]+seen[-1], ShouldEqual, 2000)
		})

		Convey("When optimizing for N trials", func() {
			calls := 0
			o, _ := NewSPSAOptimizer(DefaultSPSAParameters(), 25, WithSeed(5))

			result, err := o.Optimize(ctx, costOf(quadratic([]float64{0, 0}), &calls), []float64{1, 1})

			So(err, ShouldBeNil)
			So(calls, ShouldEqual, 50)
			So(result.Evaluations, ShouldEqual, 50)
			So(result.Iterations, ShouldEqual, 25)
		})

		Convey("When minimizing a quadratic bowl", func() {
			target := []float64{1, -1, 0.5, 0}
			f := quadratic(target)
			initial := []float64{0, 0, 0, 0}
			calls := 0

			params := SPSAParameters{A: 0.1, C: 0.1, Alpha: 0.602, Gamma: 0.101}
			o, err := NewSPSAOptimizer(params, 200, WithSeed(11), WithSaveSteps(20))
			So(err, ShouldBeNil)

			result, err := o.Optimize(ctx, costOf(f, &calls), initial)
			So(err, ShouldBeNil)

			Convey("The best cost should not regress past the starting point", func() {
				So(result.BestCost, ShouldBeLessThanOrEqualTo, f(initial))
				So(result.BestCost, ShouldBeLessThan, 0.1)
			})

			Convey("The best vector should be the one that produced the best cost", func() {
				So(f(result.Theta), ShouldAlmostEqual, result.BestCost)
				So(result.Final.Cost, ShouldEqual, result.BestCost)
			})

			Convey("The best cost should be the minimum over all evaluations", func() {
				So(result.BestCost, ShouldBeLessThanOrEqualTo, result.Plus.Cost)
				So(result.BestCost, ShouldBeLessThanOrEqualTo, result.Minus.Cost)
				So(result.Costs()[0], ShouldEqual, result.BestCost)
			})

			Convey("Progress should be saved every save interval", func() {
				So(result.History, ShouldHaveLength, 10)
				So(result.History[1].K, ShouldEqual, 20)
			})

			Convey("The initial vector should be left alone", func() {
				So(initial, ShouldResemble, []float64{0, 0, 0, 0})
			})
		})

		Convey("When the cost function fails", func() {
			boom := errors.New("backend offline")
			calls := 0
			o, _ := NewSPSAOptimizer(DefaultSPSAParameters(), 10, WithSeed(1))

			_, err := o.Optimize(ctx, func(context.Context, []float64) (CostSample, error) {
				calls++
				if calls == 3 {
					return CostSample{}, boom
				}
				return CostSample{Cost: 1}, nil
			}, []float64{0, 0})

			So(errors.Is(err, boom), ShouldBeTrue)
			So(calls, ShouldEqual, 3)
		})

		Convey("When the cost is not a number", func() {
			o, _ := NewSPSAOptimizer(DefaultSPSAParameters(), 10, WithSeed(1))

			result, err := o.Optimize(ctx, func(context.Context, []float64) (CostSample, error) {
				return CostSample{Cost: math.NaN()}, nil
			}, []float64{0, 0})

			So(err, ShouldBeNil)
			So(result.Theta, ShouldHaveLength, 2)
			So(math.IsNaN(result.Theta[0]), ShouldBeTrue)
		})

		Convey("When the initial vector is empty", func() {
			o, _ := NewSPSAOptimizer(DefaultSPSAParameters(), 10)
			_, err := o.Optimize(ctx, nil, nil)
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
		})
	})
}

func TestSPSACalibrator(t *testing.T) {
	Convey("Given a calibrator", t, func() {
		ctx := context.Background()

		Convey("When the cost moves linearly along one axis", func() {
			cal, err := NewSPSACalibrator(0.1, 0.5, 25, newRand(9))
			So(err, ShouldBeNil)

			calls := 0
			params, err := cal.Calibrate(ctx, costOf(func(theta []float64) float64 {
				return theta[0]
			}, &calls), []float64{0, 0, 0})

			So(err, ShouldBeNil)
			So(calls, ShouldEqual, 50)
			So(params.A, ShouldAlmostEqual, 0.5)
			So(params.C, ShouldEqual, 0.1)
			So(params.Alpha, ShouldEqual, 0.602)
			So(params.Gamma, ShouldEqual, 0.101)
			So(params.Validate(), ShouldBeNil)
		})

		Convey("When the cost is flat", func() {
			cal, _ := NewSPSACalibrator(0.1, 0.5, 5, newRand(9))
			calls := 0

			_, err := cal.Calibrate(ctx, costOf(func([]float64) float64 { return 1 }, &calls), []float64{0})
			So(errors.Is(err, ErrDegenerateCost), ShouldBeTrue)
		})

		Convey("When the settings are invalid", func() {
			_, err := NewSPSACalibrator(0, 0.5, 5, nil)
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
		})
	})
}
