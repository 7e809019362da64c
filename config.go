package qvar

import (
	"fmt"
	"math"

	"github.com/spf13/viper"
)

// Lower bounds of the classifier hyperparameters.
const (
	MinQubits       = 2
	MinCircuitDepth = 3
	MinTrials       = 10
)

/*
Config carries the hyperparameters of a variational classifier run. NewConfig
returns the defaults; Validate enforces the lower bounds.
*/
type Config struct {
	NumQubits    int
	CircuitDepth int
	MaxTrials    int
	Shots        int
	SaveSteps    int

	// Seed drives the initial parameter vector and the perturbations.
	// Zero picks a random seed.
	Seed uint64

	// Concurrency bounds the circuits dispatched at once within a single
	// cost evaluation. One keeps dispatch sequential.
	Concurrency int

	// Calibrate estimates the SPSA gain from the cost landscape before
	// training instead of using DefaultSPSAParameters.
	Calibrate         bool
	CalibrationC      float64
	CalibrationTarget float64
	CalibrationStat   int
}

func NewConfig() *Config {
	return &Config{
		NumQubits:         2,
		CircuitDepth:      3,
		MaxTrials:         10,
		Shots:             1024,
		SaveSteps:         10,
		Concurrency:       1,
		CalibrationC:      0.1,
		CalibrationTarget: 2 * math.Pi * 0.1,
		CalibrationStat:   25,
	}
}

func (c *Config) Validate() error {
	switch {
	case c.NumQubits < MinQubits:
		return fmt.Errorf("%w: num_of_qubits %d below minimum %d", ErrConfiguration, c.NumQubits, MinQubits)
	case c.CircuitDepth < MinCircuitDepth:
		return fmt.Errorf("%w: circuit_depth %d below minimum %d", ErrConfiguration, c.CircuitDepth, MinCircuitDepth)
	case c.MaxTrials < MinTrials:
		return fmt.Errorf("%w: max_trials %d below minimum %d", ErrConfiguration, c.MaxTrials, MinTrials)
	case c.Shots < 1:
		return fmt.Errorf("%w: shots must be positive, got %d", ErrConfiguration, c.Shots)
	case c.SaveSteps < 1:
		return fmt.Errorf("%w: save_steps must be positive, got %d", ErrConfiguration, c.SaveSteps)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrConfiguration, c.Concurrency)
	case c.Calibrate && (c.CalibrationC <= 0 || c.CalibrationTarget <= 0 || c.CalibrationStat < 1):
		return fmt.Errorf("%w: calibration needs positive c, target and stat", ErrConfiguration)
	}
	return nil
}

/*
ConfigFromViper reads the snake_case configuration keys, falling back to the
defaults of NewConfig for anything unset, and validates the result.
*/
func ConfigFromViper(v *viper.Viper) (*Config, error) {
	def := NewConfig()

	v.SetDefault("num_of_qubits", def.NumQubits)
	v.SetDefault("circuit_depth", def.CircuitDepth)
	v.SetDefault("max_trials", def.MaxTrials)
	v.SetDefault("shots", def.Shots)
	v.SetDefault("save_steps", def.SaveSteps)
	v.SetDefault("seed", def.Seed)
	v.SetDefault("concurrency", def.Concurrency)
	v.SetDefault("calibrate", def.Calibrate)
	v.SetDefault("calibration.c", def.CalibrationC)
	v.SetDefault("calibration.target", def.CalibrationTarget)
	v.SetDefault("calibration.stat", def.CalibrationStat)

	cfg := &Config{
		NumQubits:         v.GetInt("num_of_qubits"),
		CircuitDepth:      v.GetInt("circuit_depth"),
		MaxTrials:         v.GetInt("max_trials"),
		Shots:             v.GetInt("shots"),
		SaveSteps:         v.GetInt("save_steps"),
		Seed:              v.GetUint64("seed"),
		Concurrency:       v.GetInt("concurrency"),
		Calibrate:         v.GetBool("calibrate"),
		CalibrationC:      v.GetFloat64("calibration.c"),
		CalibrationTarget: v.GetFloat64("calibration.target"),
		CalibrationStat:   v.GetInt("calibration.stat"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads a configuration file in any format viper understands.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfiguration, path, err)
	}
	return ConfigFromViper(v)
}
