package qvar

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/theapemachine/qvar/circuit"
	"gonum.org/v1/gonum/stat"
)

/*
CostSample is the outcome of one cost evaluation. Cost and StdDev are the mean
and population standard deviation of the per-point costs, SuccessRatio the
fraction of points whose predicted label matched. HasCost is false for
unlabeled data, where only PredictedLabels is filled in.
*/
type CostSample struct {
	Cost            float64
	StdDev          float64
	SuccessRatio    float64
	PredictedLabels []string
	HasCost         bool
}

/*
CostEvaluator scores a parameter vector against a dataset by running one
classifier circuit per data point on the backend. Every evaluation is a full
pass over the data, so two of them per optimizer iteration dominate the cost
of training.
*/
type CostEvaluator struct {
	entangler     circuit.EntanglerMap
	couplingMap   [][2]int
	initialLayout map[int]int
	numQubits     int
	depth         int
	backend       circuit.Backend
	shots         int
	concurrency   int
	metrics       *Metrics
}

type EvaluatorOption func(*CostEvaluator)

func WithCouplingMap(couplingMap [][2]int) EvaluatorOption {
	return func(e *CostEvaluator) {
		e.couplingMap = couplingMap
	}
}

func WithInitialLayout(layout map[int]int) EvaluatorOption {
	return func(e *CostEvaluator) {
		e.initialLayout = layout
	}
}

// WithConcurrency lets up to n circuits of one evaluation run at once.
func WithConcurrency(n int) EvaluatorOption {
	return func(e *CostEvaluator) {
		e.concurrency = n
	}
}

func WithMetrics(metrics *Metrics) EvaluatorOption {
	return func(e *CostEvaluator) {
		e.metrics = metrics
	}
}

func NewCostEvaluator(
	entangler circuit.EntanglerMap,
	numQubits, depth int,
	backend circuit.Backend,
	shots int,
	opts ...EvaluatorOption,
) (*CostEvaluator, error) {
	e := &CostEvaluator{
		entangler:   entangler,
		numQubits:   numQubits,
		depth:       depth,
		backend:     backend,
		shots:       shots,
		concurrency: 1,
		metrics:     NewMetrics(),
	}

	for _, opt := range opts {
		opt(e)
	}

	switch {
	case backend == nil:
		return nil, fmt.Errorf("%w: no backend", ErrConfiguration)
	case shots < 1:
		return nil, fmt.Errorf("%w: shots must be positive, got %d", ErrConfiguration, shots)
	case e.concurrency < 1:
		return nil, fmt.Errorf("%w: concurrency must be positive, got %d", ErrConfiguration, e.concurrency)
	}

	if err := entangler.Validate(numQubits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return e, nil
}

func (e *CostEvaluator) Metrics() *Metrics {
	return e.metrics
}

// CostFunc binds the evaluator to a training set for the optimizer.
func (e *CostEvaluator) CostFunc(dataset *Dataset, labels []string) CostFunc {
	return func(ctx context.Context, theta []float64) (CostSample, error) {
		return e.Evaluate(ctx, theta, dataset, labels)
	}
}

/*
Evaluate runs every labelled point of dataset under theta and aggregates the
sigmoid costs of the true labels. labels fixes the class index of each label
and defaults to the dataset's own order; every label in the dataset must
appear in it. Predicted labels come back in dataset order.
*/
func (e *CostEvaluator) Evaluate(ctx context.Context, theta []float64, dataset *Dataset, labels []string) (CostSample, error) {
	if labels == nil {
		labels = dataset.Labels()
	}
	if len(labels) == 0 || dataset.Len() == 0 {
		return CostSample{}, ErrEmptyDataset
	}

	index := labelIndex(labels)

	var (
		points [][]float64
		truth  []int
	)
	for _, label := range dataset.Labels() {
		class, ok := index[label]
		if !ok {
			return CostSample{}, fmt.Errorf("%w: class %q is not one of %v", ErrConfiguration, label, labels)
		}
		for _, p := range dataset.Points(label) {
			points = append(points, p)
			truth = append(truth, class)
		}
	}

	probs, err := e.dispatch(ctx, theta, points, len(labels))
	if err != nil {
		return CostSample{}, err
	}

	costs := make([]float64, len(points))
	predicted := make([]string, len(points))
	correct := 0

	for i, p := range probs {
		guess := argmax(p)
		predicted[i] = labels[guess]
		if guess == truth[i] {
			correct++
		}
		costs[i] = sigmoidCost(e.shots, p[truth[i]], len(labels))
	}

	sample := CostSample{
		PredictedLabels: predicted,
		HasCost:         true,
	}

	sample.Cost, sample.StdDev = meanStdDev(costs)
	sample.SuccessRatio = float64(correct) / float64(len(costs))

	e.metrics.recordEvaluation(sample.Cost, true)
	return sample, nil
}

// Predict classifies unlabeled points into labels without computing a cost.
func (e *CostEvaluator) Predict(ctx context.Context, theta []float64, points [][]float64, labels []string) (CostSample, error) {
	if len(labels) == 0 {
		return CostSample{}, ErrEmptyDataset
	}

	probs, err := e.dispatch(ctx, theta, points, len(labels))
	if err != nil {
		return CostSample{}, err
	}

	predicted := make([]string, len(probs))
	for i, p := range probs {
		predicted[i] = labels[argmax(p)]
	}

	e.metrics.recordEvaluation(0, false)
	return CostSample{PredictedLabels: predicted}, nil
}

// dispatch returns the class probabilities of every point, in input order.
func (e *CostEvaluator) dispatch(ctx context.Context, theta []float64, points [][]float64, numClasses int) ([][]float64, error) {
	if want := circuit.ParameterCount(e.numQubits, e.depth); len(theta) != want {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrParameterLength, want, len(theta))
	}

	// The optimizer owns its vectors; circuits get a private copy.
	theta = append([]float64(nil), theta...)
	evaluation := uuid.NewString()
	results := make([][]float64, len(points))

	run := func(ctx context.Context, i int) error {
		probs, err := e.execute(ctx, fmt.Sprintf("%s-%d", evaluation, i), points[i], theta, numClasses)
		if err != nil {
			return err
		}
		results[i] = probs
		return nil
	}

	if e.concurrency == 1 {
		for i := range points {
			if err := run(ctx, i); err != nil {
				return nil, err
			}
		}
		return results, nil
	}

	// The first failure cancels the pool context so queued circuits are never
	// submitted, and nothing further is queued.
	var failed atomic.Bool

	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(e.concurrency)

	for i := range points {
		if failed.Load() {
			break
		}
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := run(ctx, i); err != nil {
				failed.Store(true)
				return err
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// classProbabilities folds measured bitstrings into classes by Hamming weight
// modulo the class count, which is the parity for two classes.
func classProbabilities(counts circuit.Counts, numClasses int) ([]float64, error) {
	probs := make([]float64, numClasses)
	total := counts.Total()
	if total == 0 {
		return probs, nil
	}

	for bitstring, hits := range counts {
		w, err := circuit.Weight(bitstring)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBackendExecution, err)
		}
		probs[w%numClasses] += float64(hits) / float64(total)
	}
	return probs, nil
}

/*
sigmoidCost maps the probability p of the true class to a cost in [0, 1]. The
argument scales the margin of p over chance by the shot noise, so confident
correct answers cost close to 0 and confident wrong ones close to 1.
*/
func sigmoidCost(shots int, p float64, numClasses int) float64 {
	switch {
	case p >= 1:
		return 0
	case p <= 0:
		return 1
	}

	x := math.Sqrt(float64(shots)) * (1/float64(numClasses) - p) / math.Sqrt(2*p*(1-p))
	return 1 / (1 + math.Exp(-x))
}

// argmax prefers the lowest index on ties.
func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

func meanStdDev(xs []float64) (float64, float64) {
	if len(xs) < 2 {
		return stat.Mean(xs, nil), 0
	}
	mean, variance := stat.MeanVariance(xs, nil)
	n := float64(len(xs))
	return mean, math.Sqrt(variance * (n - 1) / n)
}
