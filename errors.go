package qvar

import "errors"

// Sentinel errors. Check with errors.Is.
var (
	ErrConfiguration      = errors.New("qvar: invalid configuration")
	ErrBackendExecution   = errors.New("qvar: backend execution failed")
	ErrBackendUnavailable = errors.New("qvar: backend unavailable")
	ErrParameterLength    = errors.New("qvar: parameter vector length changed")
	ErrDegenerateCost     = errors.New("qvar: cost function shows no sensitivity")
	ErrEmptyDataset       = errors.New("qvar: dataset has no class labels")
	ErrMissingTraining    = errors.New("qvar: training dataset is missing")
)
