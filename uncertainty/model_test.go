package uncertainty

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/qvar/circuit"
)

func sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}

func TestUnivariateModels(t *testing.T) {
	Convey("Given a normal distribution on three qubits", t, func() {
		n, err := NewNormal(3, 0, 1, -1, 1)
		So(err, ShouldBeNil)

		Convey("It should discretise onto eight grid points", func() {
			So(n.NumValues(), ShouldEqual, 8)
			So(n.Values()[0], ShouldAlmostEqual, -1.0)
			So(n.Values()[7], ShouldAlmostEqual, 1.0)
			So(sum(n.Probabilities()), ShouldAlmostEqual, 1.0, 1e-12)
		})

		Convey("It should be symmetric around the mean", func() {
			probs := n.Probabilities()
			So(probs[0], ShouldAlmostEqual, probs[7], 1e-12)
			So(probs[3], ShouldBeGreaterThan, probs[0])
			So(Expectation(n), ShouldAlmostEqual, 0.0, 1e-12)
		})

		Convey("It should load itself with normalised amplitudes", func() {
			c := circuit.New("normal", 3)
			So(n.Build(c, []int{0, 1, 2}), ShouldBeNil)
			So(c.Validate(), ShouldBeNil)
			So(c.Gates[0].Name, ShouldEqual, circuit.GateInitialize)
		})

		Convey("It should refuse the wrong register", func() {
			c := circuit.New("normal", 3)
			So(errors.Is(n.Build(c, []int{0, 1}), ErrInvalidModel), ShouldBeTrue)
		})
	})

	Convey("Given invalid parameters", t, func() {
		_, err := NewNormal(0, 0, 1, -1, 1)
		So(errors.Is(err, ErrInvalidModel), ShouldBeTrue)

		_, err = NewNormal(2, 0, 1, 1, -1)
		So(errors.Is(err, ErrInvalidModel), ShouldBeTrue)

		_, err = NewNormal(2, 0, 0, -1, 1)
		So(errors.Is(err, ErrInvalidModel), ShouldBeTrue)

		_, err = NewBernoulli(1.5, 0, 1)
		So(errors.Is(err, ErrInvalidModel), ShouldBeTrue)

		_, err = NewLogNormal(2, 0, 1, -2, -1)
		So(errors.Is(err, ErrInvalidModel), ShouldBeTrue)
	})

	Convey("Given a log-normal distribution", t, func() {
		ln, err := NewLogNormal(2, 0, 1, 0, 3)
		So(err, ShouldBeNil)

		probs := ln.Probabilities()
		So(probs[0], ShouldEqual, 0.0)
		So(sum(probs), ShouldAlmostEqual, 1.0, 1e-12)
	})

	Convey("Given a bernoulli distribution", t, func() {
		b, err := NewBernoulli(0.25, 0, 1)
		So(err, ShouldBeNil)
		So(b.Probabilities(), ShouldResemble, []float64{0.75, 0.25})
		So(Expectation(b), ShouldAlmostEqual, 0.25)

		c := circuit.New("bernoulli", 1)
		So(b.Build(c, []int{0}), ShouldBeNil)
		So(c.Gates[0].Name, ShouldEqual, circuit.GateRY)
		So(math.Pow(math.Sin(c.Gates[0].Params[0]/2), 2), ShouldAlmostEqual, 0.25, 1e-12)
	})

	Convey("Given a uniform distribution", t, func() {
		u, err := NewUniform(2, 0, 3)
		So(err, ShouldBeNil)
		for _, p := range u.Probabilities() {
			So(p, ShouldAlmostEqual, 0.25)
		}
		So(u.Values(), ShouldResemble, []float64{0, 1, 2, 3})

		c := circuit.New("uniform", 2)
		So(u.Build(c, []int{0, 1}), ShouldBeNil)
		So(c.Gates, ShouldHaveLength, 2)
	})
}

func TestMultivariateModels(t *testing.T) {
	Convey("Given a two dimensional normal distribution", t, func() {
		mn, err := NewMultivariateNormal(
			[]int{2, 1},
			[]float64{0, 0},
			[][]float64{{1, 0.5}, {0.5, 1}},
			[]float64{-1, -1},
			[]float64{1, 1},
		)
		So(err, ShouldBeNil)

		Convey("It should span the joint grid", func() {
			So(mn.Dimension(), ShouldEqual, 2)
			So(mn.NumTargetQubits(), ShouldEqual, 3)
			So(mn.Values(), ShouldHaveLength, 8)
			point := mn.Values()[5]
			So(point[0], ShouldAlmostEqual, -1.0/3)
			So(point[1], ShouldAlmostEqual, 1.0)
			So(sum(mn.Probabilities()), ShouldAlmostEqual, 1.0, 1e-12)
		})

		Convey("It should favour correlated corners", func() {
			probs := mn.Probabilities()
			// (-1,-1) is index 0, (1,-1) index 3, (1,1) index 7.
			So(probs[7], ShouldBeGreaterThan, probs[3])
			So(probs[0], ShouldAlmostEqual, probs[7], 1e-12)
		})
	})

	Convey("Given a covariance that is not positive definite", t, func() {
		_, err := NewMultivariateNormal(
			[]int{1, 1},
			[]float64{0, 0},
			[][]float64{{1, 2}, {2, 1}},
			[]float64{-1, -1},
			[]float64{1, 1},
		)
		So(errors.Is(err, ErrInvalidModel), ShouldBeTrue)
	})

	Convey("Given a multivariate uniform distribution", t, func() {
		mu, err := NewMultivariateUniform([]int{1, 1}, []float64{0, 0}, []float64{1, 1})
		So(err, ShouldBeNil)
		So(mu.Probabilities(), ShouldResemble, []float64{0.25, 0.25, 0.25, 0.25})

		c := circuit.New("uniform", 2)
		So(mu.Build(c, []int{0, 1}), ShouldBeNil)
		So(c.Gates, ShouldHaveLength, 2)
	})
}

func TestVariationalModels(t *testing.T) {
	Convey("Given a univariate variational distribution", t, func() {
		initial, _ := NewUniform(2, 0, 3)
		params := make([]float64, circuit.ParameterCount(2, 1))

		uv, err := NewUnivariateVariational(2, 1, params, initial, 0, 3)
		So(err, ShouldBeNil)
		So(uv.Probabilities(), ShouldBeEmpty)

		Convey("When the backend reports a measured distribution", func() {
			backend := circuit.NewFixedBackend(circuit.Counts{"00": 1, "10": 3})

			err := uv.SetProbabilities(context.Background(), backend, 4)
			So(err, ShouldBeNil)
			So(uv.Probabilities(), ShouldResemble, []float64{0.25, 0, 0.75, 0})
			So(Expectation(uv), ShouldAlmostEqual, 1.5)
		})

		Convey("When building onto a circuit", func() {
			c := circuit.New("variational", 2)
			So(uv.Build(c, []int{0, 1}), ShouldBeNil)
			So(c.Gates[0].Name, ShouldEqual, circuit.GateH)
			So(c.Validate(), ShouldBeNil)
		})

		Convey("When the backend fails", func() {
			backend := circuit.BackendFunc(func(context.Context, *circuit.Circuit, int) (circuit.Counts, error) {
				return nil, errors.New("offline")
			})
			So(uv.SetProbabilities(context.Background(), backend, 4), ShouldNotBeNil)
		})
	})

	Convey("Given variational parameters of the wrong length", t, func() {
		_, err := NewUnivariateVariational(2, 1, []float64{1}, nil, 0, 1)
		So(errors.Is(err, ErrInvalidModel), ShouldBeTrue)
	})

	Convey("Given a multivariate variational distribution", t, func() {
		params := make([]float64, circuit.ParameterCount(3, 2))
		mv, err := NewMultivariateVariational([]int{1, 2}, 2, params, nil, []float64{0, 0}, []float64{1, 3})
		So(err, ShouldBeNil)

		backend := circuit.NewFixedBackend(circuit.Counts{"111": 2})
		So(mv.SetProbabilities(context.Background(), backend, 2), ShouldBeNil)

		probs := mv.Probabilities()
		So(probs[7], ShouldEqual, 1.0)
		t.Log(spew.Sdump(mv.Values()))
		So(mv.Values()[7], ShouldResemble, []float64{1, 3})
	})
}
