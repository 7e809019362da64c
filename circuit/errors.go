package circuit

import "errors"

var (
	ErrInvalidCircuit   = errors.New("circuit: invalid circuit")
	ErrInvalidEntangler = errors.New("circuit: invalid entangler map")
	ErrParameterLength  = errors.New("circuit: parameter vector has wrong length")
	ErrFeatureDimension = errors.New("circuit: feature vector does not match qubit count")
)
