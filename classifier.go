package qvar

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/theapemachine/errnie"
	"github.com/theapemachine/qvar/circuit"
)

// State is the lifecycle position of a VariationalClassifier.
type State int

const (
	StateUninitialized State = iota
	StateConfigured
	StateTrained
	StateTested
	StatePredicted
	StateReported
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateTrained:
		return "trained"
	case StateTested:
		return "tested"
	case StatePredicted:
		return "predicted"
	case StateReported:
		return "reported"
	}
	return "unknown"
}

// Input carries the datasets of a run. Test and Datapoints are optional.
type Input struct {
	Training   *Dataset
	Test       *Dataset
	Datapoints [][]float64
}

/*
Result is the record a run reports. Only the fields of the phases that ran
are set; Map renders exactly those as keys.
*/
type Result struct {
	RunID            string
	Error            string
	TestSuccessRatio *float64
	PredictedLabels  []string
	Training         *TrainingResult
}

func (r *Result) Map() map[string]any {
	out := make(map[string]any, 3)
	if r.Error != "" {
		out["error"] = r.Error
	}
	if r.TestSuccessRatio != nil {
		out["test_success_ratio"] = *r.TestSuccessRatio
	}
	if r.PredictedLabels != nil {
		out["predicted_labels"] = r.PredictedLabels
	}
	return out
}

func (r *Result) String() string {
	return spew.Sdump(r.Map())
}

/*
VariationalClassifier trains a variational circuit as a binary or multi-class
classifier. A run trains on the training set with SPSA, then scores the test
set and labels the unlabeled datapoints with the best parameters, when those
were supplied.
*/
type VariationalClassifier struct {
	backend  circuit.Backend
	config   *Config
	evalOpts []EvaluatorOption
	params   SPSAParameters

	training   *Dataset
	test       *Dataset
	datapoints [][]float64
	labels     []string

	entangler circuit.EntanglerMap
	evaluator *CostEvaluator
	rng       *rand.Rand
	state     State
	trained   *TrainingResult
}

type ClassifierOption func(*VariationalClassifier)

func WithEvaluatorOptions(opts ...EvaluatorOption) ClassifierOption {
	return func(vc *VariationalClassifier) {
		vc.evalOpts = append(vc.evalOpts, opts...)
	}
}

// WithSPSAParameters replaces the precomputed gains used without calibration.
func WithSPSAParameters(params SPSAParameters) ClassifierOption {
	return func(vc *VariationalClassifier) {
		vc.params = params
	}
}

func NewVariationalClassifier(backend circuit.Backend, opts ...ClassifierOption) *VariationalClassifier {
	vc := &VariationalClassifier{
		backend: backend,
		params:  DefaultSPSAParameters(),
		state:   StateUninitialized,
	}

	for _, opt := range opts {
		opt(vc)
	}

	return vc
}

func (vc *VariationalClassifier) State() State {
	return vc.state
}

func (vc *VariationalClassifier) Labels() []string {
	return append([]string(nil), vc.labels...)
}

func (vc *VariationalClassifier) Evaluator() *CostEvaluator {
	return vc.evaluator
}

// InitParams configures the classifier and takes the datasets of the run. A
// rejected configuration leaves the previous datasets and settings in place.
func (vc *VariationalClassifier) InitParams(cfg *Config, input Input) error {
	if err := vc.InitArgs(cfg); err != nil {
		return err
	}

	vc.training = input.Training
	vc.test = input.Test
	vc.datapoints = input.Datapoints
	vc.labels = input.Training.Labels()

	return nil
}

// InitArgs validates the hyperparameters and builds the cost evaluator.
func (vc *VariationalClassifier) InitArgs(cfg *Config) error {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	em, err := circuit.NewEntanglerMap(cfg.NumQubits)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	opts := append([]EvaluatorOption{WithConcurrency(cfg.Concurrency)}, vc.evalOpts...)
	evaluator, err := NewCostEvaluator(em, cfg.NumQubits, cfg.CircuitDepth, vc.backend, cfg.Shots, opts...)
	if err != nil {
		return err
	}

	vc.config = cfg
	vc.entangler = em
	vc.evaluator = evaluator
	vc.rng = newRand(cfg.Seed)
	vc.transition(StateConfigured)

	return nil
}

// InitialParameters draws a starting vector from the standard normal
// distribution, one angle per rotation of the variational form.
func (vc *VariationalClassifier) InitialParameters() []float64 {
	theta := make([]float64, circuit.ParameterCount(vc.config.NumQubits, vc.config.CircuitDepth))
	for i := range theta {
		theta[i] = vc.rng.NormFloat64()
	}
	return theta
}

// Train optimizes the circuit parameters on dataset.
func (vc *VariationalClassifier) Train(ctx context.Context, dataset *Dataset, labels []string) (*TrainingResult, error) {
	if err := vc.configured(); err != nil {
		return nil, err
	}
	if err := dataset.Validate(vc.config.NumQubits); err != nil {
		return nil, err
	}

	initial := vc.InitialParameters()
	cost := vc.evaluator.CostFunc(dataset, labels)

	params := vc.params
	if vc.config.Calibrate {
		calibrator, err := NewSPSACalibrator(
			vc.config.CalibrationC, vc.config.CalibrationTarget, vc.config.CalibrationStat, vc.rng,
		)
		if err != nil {
			return nil, err
		}
		if params, err = calibrator.Calibrate(ctx, cost, initial); err != nil {
			return nil, err
		}
	}

	optimizer, err := NewSPSAOptimizer(
		params, vc.config.MaxTrials, WithRand(vc.rng), WithSaveSteps(vc.config.SaveSteps),
	)
	if err != nil {
		return nil, err
	}

	result, err := optimizer.Optimize(ctx, cost, initial)
	if err != nil {
		return nil, err
	}

	vc.trained = result
	vc.transition(StateTrained)

	return result, nil
}

// Test scores theta on a labelled held-out set and returns the success ratio.
func (vc *VariationalClassifier) Test(ctx context.Context, theta []float64, dataset *Dataset, labels []string) (float64, error) {
	if err := vc.configured(); err != nil {
		return 0, err
	}
	if err := dataset.Validate(vc.config.NumQubits); err != nil {
		return 0, err
	}

	sample, err := vc.evaluator.Evaluate(ctx, theta, dataset, labels)
	if err != nil {
		return 0, err
	}

	vc.transition(StateTested)
	return sample.SuccessRatio, nil
}

// Predict labels unlabeled points with theta.
func (vc *VariationalClassifier) Predict(ctx context.Context, theta []float64, points [][]float64, labels []string) ([]string, error) {
	if err := vc.configured(); err != nil {
		return nil, err
	}
	for i, p := range points {
		if len(p) != vc.config.NumQubits {
			return nil, fmt.Errorf(
				"%w: datapoint %d has %d features, want %d",
				ErrConfiguration, i, len(p), vc.config.NumQubits,
			)
		}
	}

	sample, err := vc.evaluator.Predict(ctx, theta, points, labels)
	if err != nil {
		return nil, err
	}

	vc.transition(StatePredicted)
	return sample.PredictedLabels, nil
}

/*
Run trains, then tests and predicts when the respective data was supplied. A
missing training set is reported in the result's Error field without touching
the backend; every other failure is returned as an error.
*/
func (vc *VariationalClassifier) Run(ctx context.Context) (*Result, error) {
	result := &Result{RunID: uuid.NewString()}

	if vc.training == nil {
		result.Error = ErrMissingTraining.Error() + ", please provide it"
		vc.transition(StateReported)
		return result, nil
	}

	if err := vc.configured(); err != nil {
		return nil, err
	}

	errnie.Info("run %s - training on %d points over %v", result.RunID, vc.training.Len(), vc.labels)

	trained, err := vc.Train(ctx, vc.training, vc.labels)
	if err != nil {
		return nil, err
	}
	result.Training = trained

	if vc.test != nil {
		ratio, err := vc.Test(ctx, trained.Theta, vc.test, vc.labels)
		if err != nil {
			return nil, err
		}
		result.TestSuccessRatio = &ratio
		errnie.Info("run %s - classification success for this set is %.2f%%", result.RunID, 100*ratio)
	}

	if vc.datapoints != nil {
		predicted, err := vc.Predict(ctx, trained.Theta, vc.datapoints, vc.labels)
		if err != nil {
			return nil, err
		}
		result.PredictedLabels = predicted
	}

	vc.transition(StateReported)
	return result, nil
}

func (vc *VariationalClassifier) configured() error {
	if vc.evaluator == nil {
		return fmt.Errorf("%w: classifier is %s, call InitArgs first", ErrConfiguration, vc.state)
	}
	return nil
}

func (vc *VariationalClassifier) transition(to State) {
	errnie.Info("variational classifier %s -> %s", vc.state, to)
	vc.state = to
}
