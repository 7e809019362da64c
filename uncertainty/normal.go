package uncertainty

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// Normal is a Gaussian truncated to [low, high] and discretised onto the grid.
type Normal struct {
	univariate
	mu, sigma float64
}

// NewNormal discretises N(mu, sigma²) onto 2^numQubits points. sigma is the
// standard deviation.
func NewNormal(numQubits int, mu, sigma, low, high float64) (*Normal, error) {
	base, err := newUnivariate("normal", numQubits, low, high)
	if err != nil {
		return nil, err
	}
	if sigma <= 0 {
		return nil, fmt.Errorf("%w: normal sigma must be positive, got %v", ErrInvalidModel, sigma)
	}

	n := &Normal{univariate: base, mu: mu, sigma: sigma}
	dist := distuv.Normal{Mu: mu, Sigma: sigma}

	if err := n.fromDensity(dist.Prob); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Normal) Mu() float64    { return n.mu }
func (n *Normal) Sigma() float64 { return n.sigma }

// LogNormal is a log-normal distribution whose logarithm has mean mu and
// standard deviation sigma, discretised onto [low, high].
type LogNormal struct {
	univariate
	mu, sigma float64
}

func NewLogNormal(numQubits int, mu, sigma, low, high float64) (*LogNormal, error) {
	base, err := newUnivariate("log-normal", numQubits, low, high)
	if err != nil {
		return nil, err
	}
	if sigma <= 0 {
		return nil, fmt.Errorf("%w: log-normal sigma must be positive, got %v", ErrInvalidModel, sigma)
	}

	ln := &LogNormal{univariate: base, mu: mu, sigma: sigma}
	dist := distuv.LogNormal{Mu: mu, Sigma: sigma}

	if err := ln.fromDensity(func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		return dist.Prob(x)
	}); err != nil {
		return nil, err
	}
	return ln, nil
}

func (ln *LogNormal) Mu() float64    { return ln.mu }
func (ln *LogNormal) Sigma() float64 { return ln.sigma }
