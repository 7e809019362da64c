package qvar

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/qvar/circuit"
)

// thresholdBackend answers odd parity when the first feature is above 0.5,
// read back from the first U1 rotation of the feature map.
func thresholdBackend(calls *atomic.Int64) circuit.Backend {
	return circuit.BackendFunc(func(ctx context.Context, c *circuit.Circuit, shots int) (circuit.Counts, error) {
		calls.Add(1)
		if c.Gates[1].Params[0]/2 > 0.5 {
			return circuit.Counts{"01": shots}, nil
		}
		return circuit.Counts{"00": shots}, nil
	})
}

func separableDataset() *Dataset {
	return NewDataset().
		Add("low", []float64{0.1, 0.3}, []float64{0.2, 0.9}, []float64{0.3, 0.1}).
		Add("high", []float64{0.8, 0.3}, []float64{0.9, 0.9})
}

func TestCostEvaluator(t *testing.T) {
	Convey("Given a cost evaluator for two qubits at depth three", t, func() {
		ctx := context.Background()
		em, _ := circuit.NewEntanglerMap(2)
		theta := make([]float64, circuit.ParameterCount(2, 3))

		Convey("When the backend separates the classes", func() {
			var calls atomic.Int64
			e, err := NewCostEvaluator(em, 2, 3, thresholdBackend(&calls), 1024)
			So(err, ShouldBeNil)

			sample, err := e.Evaluate(ctx, theta, separableDataset(), nil)

			So(err, ShouldBeNil)
			So(calls.Load(), ShouldEqual, int64(5))
			So(sample.HasCost, ShouldBeTrue)
			So(sample.SuccessRatio, ShouldEqual, 1.0)
			So(sample.Cost, ShouldEqual, 0.0)
			So(sample.StdDev, ShouldEqual, 0.0)
			So(sample.PredictedLabels, ShouldResemble, []string{"low", "low", "low", "high", "high"})

			Convey("The metrics should count every submission", func() {
				So(e.Metrics().Submissions, ShouldEqual, int64(5))
				So(e.Metrics().Evaluations, ShouldEqual, int64(1))
				So(e.Metrics().SuccessRate(), ShouldEqual, 1.0)
			})
		})

		Convey("When circuits are dispatched concurrently", func() {
			var sequentialCalls, concurrentCalls atomic.Int64
			sequential, _ := NewCostEvaluator(em, 2, 3, thresholdBackend(&sequentialCalls), 1024)
			concurrent, _ := NewCostEvaluator(em, 2, 3, thresholdBackend(&concurrentCalls), 1024, WithConcurrency(4))

			a, errA := sequential.Evaluate(ctx, theta, separableDataset(), nil)
			b, errB := concurrent.Evaluate(ctx, theta, separableDataset(), nil)

			So(errA, ShouldBeNil)
			So(errB, ShouldBeNil)
			So(b, ShouldResemble, a)
			So(concurrentCalls.Load(), ShouldEqual, sequentialCalls.Load())
		})

		Convey("When the backend always measures even parity", func() {
			backend := circuit.NewFixedBackend(circuit.Counts{"00": 512, "11": 512})
			e, _ := NewCostEvaluator(em, 2, 3, backend, 1024)

			sample, err := e.Evaluate(ctx, theta, separableDataset(), nil)

			So(err, ShouldBeNil)
			So(sample.SuccessRatio, ShouldAlmostEqual, 0.6)
			So(sample.Cost, ShouldAlmostEqual, 0.4)
			So(sample.StdDev, ShouldAlmostEqual, 0.4898979485566356)
		})

		Convey("When the class order is given explicitly", func() {
			var calls atomic.Int64
			e, _ := NewCostEvaluator(em, 2, 3, thresholdBackend(&calls), 1024)

			sample, err := e.Evaluate(ctx, theta, separableDataset(), []string{"high", "low"})

			So(err, ShouldBeNil)
			So(sample.SuccessRatio, ShouldEqual, 0.0)
			So(sample.PredictedLabels[0], ShouldEqual, "high")
		})

		Convey("When the dataset holds a class outside the label set", func() {
			backend := circuit.NewFixedBackend(circuit.Counts{"00": 1})
			e, _ := NewCostEvaluator(em, 2, 3, backend, 1)

			_, err := e.Evaluate(ctx, theta, separableDataset(), []string{"low"})
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
			So(backend.Submissions(), ShouldEqual, 0)
		})

		Convey("When the dataset is empty", func() {
			backend := circuit.NewFixedBackend(circuit.Counts{"00": 1})
			e, _ := NewCostEvaluator(em, 2, 3, backend, 1)

			_, err := e.Evaluate(ctx, theta, NewDataset(), nil)
			So(errors.Is(err, ErrEmptyDataset), ShouldBeTrue)
		})

		Convey("When theta has the wrong length", func() {
			backend := circuit.NewFixedBackend(circuit.Counts{"00": 1})
			e, _ := NewCostEvaluator(em, 2, 3, backend, 1)

			_, err := e.Evaluate(ctx, theta[:4], separableDataset(), nil)
			So(errors.Is(err, ErrParameterLength), ShouldBeTrue)
			So(backend.Submissions(), ShouldEqual, 0)
		})

		Convey("When the backend fails", func() {
			offline := errors.New("offline")
			calls := 0
			backend := circuit.BackendFunc(func(context.Context, *circuit.Circuit, int) (circuit.Counts, error) {
				calls++
				return nil, offline
			})
			e, _ := NewCostEvaluator(em, 2, 3, backend, 1024)

			_, err := e.Evaluate(ctx, theta, separableDataset(), nil)

			So(errors.Is(err, ErrBackendExecution), ShouldBeTrue)
			So(errors.Is(err, offline), ShouldBeTrue)
			So(calls, ShouldEqual, 1)
			So(e.Metrics().SubmissionFailures, ShouldEqual, int64(1))
		})

		Convey("When the backend fails during a concurrent evaluation", func() {
			var calls atomic.Int64
			backend := circuit.BackendFunc(func(context.Context, *circuit.Circuit, int) (circuit.Counts, error) {
				calls.Add(1)
				return nil, errors.New("device offline")
			})
			e, _ := NewCostEvaluator(em, 2, 3, backend, 1024, WithConcurrency(2))

			large := NewDataset()
			for i := 0; i < 50; i++ {
				large.Add("low", []float64{0.01 * float64(i), 0.5})
			}

			_, err := e.Evaluate(ctx, theta, large, nil)

			So(errors.Is(err, ErrBackendExecution), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "device offline")
			So(calls.Load(), ShouldBeLessThanOrEqualTo, int64(2))
		})

		Convey("When predicting unlabeled points", func() {
			var calls atomic.Int64
			e, _ := NewCostEvaluator(em, 2, 3, thresholdBackend(&calls), 1024)

			sample, err := e.Predict(ctx, theta, [][]float64{{0.9, 0}, {0.1, 0}}, []string{"low", "high"})

			So(err, ShouldBeNil)
			So(sample.HasCost, ShouldBeFalse)
			So(sample.PredictedLabels, ShouldResemble, []string{"high", "low"})
		})

		Convey("When the configuration is invalid", func() {
			backend := circuit.NewFixedBackend(nil)

			_, err := NewCostEvaluator(em, 2, 3, nil, 1024)
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)

			_, err = NewCostEvaluator(em, 2, 3, backend, 0)
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)

			_, err = NewCostEvaluator(circuit.EntanglerMap{0: {5}}, 2, 3, backend, 10)
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
		})
	})
}

func TestSigmoidCost(t *testing.T) {
	Convey("Given the probability of the true class", t, func() {
		So(sigmoidCost(1024, 1, 2), ShouldEqual, 0.0)
		So(sigmoidCost(1024, 0, 2), ShouldEqual, 1.0)
		So(sigmoidCost(1024, 0.5, 2), ShouldAlmostEqual, 0.5)
		So(sigmoidCost(1024, 0.7, 2), ShouldBeLessThan, 0.5)
		So(sigmoidCost(1024, 0.3, 2), ShouldBeGreaterThan, 0.5)
		So(sigmoidCost(1024, 0.6, 2), ShouldBeGreaterThan, sigmoidCost(1024, 0.7, 2))
	})

	Convey("Given measured counts", t, func() {
		probs, err := classProbabilities(circuit.Counts{"00": 1, "01": 1, "10": 1, "11": 1}, 2)
		So(err, ShouldBeNil)
		So(probs, ShouldResemble, []float64{0.5, 0.5})

		probs, err = classProbabilities(circuit.Counts{"111": 2, "001": 2}, 3)
		So(err, ShouldBeNil)
		So(probs, ShouldResemble, []float64{0.5, 0.5, 0})

		probs, err = classProbabilities(circuit.Counts{}, 2)
		So(err, ShouldBeNil)
		So(probs, ShouldResemble, []float64{0.0, 0.0})

		So(argmax([]float64{0.5, 0.5}), ShouldEqual, 0)
	})
}
