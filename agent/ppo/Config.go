package ppo

import (
	"fmt"
	"log/slog"

	"github.com/samuelfneumann/armppo/solver"
)

// Config implements a configuration of the PPO Learner
type Config struct {
	StepsPerTrajectory   int `json:"steps_per_trajectory" yaml:"steps_per_trajectory" mapstructure:"steps_per_trajectory"`
	TrajectoriesPerBatch int `json:"trajectories_per_batch" yaml:"trajectories_per_batch" mapstructure:"trajectories_per_batch"`
	Epochs               int `json:"epochs" yaml:"epochs" mapstructure:"epochs"`
	Iterations           int `json:"iterations" yaml:"iterations" mapstructure:"iterations"`

	Solver       solver.Type `json:"solver" yaml:"solver" mapstructure:"solver"`
	LearningRate float64     `json:"learning_rate" yaml:"learning_rate" mapstructure:"learning_rate"`

	Discount          float64 `json:"discount" yaml:"discount" mapstructure:"discount"`
	ClippingParam     float64 `json:"clipping_param" yaml:"clipping_param" mapstructure:"clipping_param"`
	CriticCoefficient float64 `json:"critic_coefficient" yaml:"critic_coefficient" mapstructure:"critic_coefficient"`

	EntropyCoefficient float64 `json:"entropy_coefficient" yaml:"entropy_coefficient" mapstructure:"entropy_coefficient"`
	EntropyDecay       float64 `json:"entropy_decay" yaml:"entropy_decay" mapstructure:"entropy_decay"`

	ReversionThreshold      float64 `json:"reversion_threshold" yaml:"reversion_threshold" mapstructure:"reversion_threshold"`
	ReversionThresholdDecay float64 `json:"reversion_threshold_decay" yaml:"reversion_threshold_decay" mapstructure:"reversion_threshold_decay"`
	MinReversionThreshold   float64 `json:"min_reversion_threshold" yaml:"min_reversion_threshold" mapstructure:"min_reversion_threshold"`

	// Seed seeds the live policy's action sampler
	Seed uint64 `json:"seed" yaml:"seed" mapstructure:"seed"`

	// Logger receives training logs. If nil, slog.Default() is used.
	Logger *slog.Logger `json:"-" yaml:"-" mapstructure:"-"`
}

// DefaultConfig returns the default PPO configuration
func DefaultConfig() Config {
	return Config{
		StepsPerTrajectory:      128,
		TrajectoriesPerBatch:    8,
		Epochs:                  5,
		Iterations:              50,
		Solver:                  solver.Adam,
		LearningRate:            2.5e-4,
		Discount:                0.99,
		ClippingParam:           0.1,
		CriticCoefficient:       1.0,
		EntropyCoefficient:      0.1,
		EntropyDecay:            0.999,
		ReversionThreshold:      0.2,
		ReversionThresholdDecay: 0.99,
		MinReversionThreshold:   0.1,
	}
}

// BatchSize returns the number of states in each training batch
func (c Config) BatchSize() int {
	return c.StepsPerTrajectory * c.TrajectoriesPerBatch
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"steps per trajectory", c.StepsPerTrajectory},
		{"trajectories per batch", c.TrajectoriesPerBatch},
		{"epochs", c.Epochs},
		{"iterations", c.Iterations},
	}
	for _, p := range positive {
		if p.value < 1 {
			return fmt.Errorf("validate: %v must be at least 1, have %v",
				p.name, p.value)
		}
	}

	if c.LearningRate <= 0 {
		return fmt.Errorf("validate: learning rate must be positive, have %v",
			c.LearningRate)
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1], have %v",
			c.Discount)
	}
	if c.ClippingParam <= 0 || c.ClippingParam >= 1 {
		return fmt.Errorf("validate: clipping parameter must be in (0, 1), "+
			"have %v", c.ClippingParam)
	}

	nonNegative := []struct {
		name  string
		value float64
	}{
		{"critic coefficient", c.CriticCoefficient},
		{"entropy coefficient", c.EntropyCoefficient},
		{"reversion threshold", c.ReversionThreshold},
		{"minimum reversion threshold", c.MinReversionThreshold},
	}
	for _, n := range nonNegative {
		if n.value < 0 {
			return fmt.Errorf("validate: %v must be non-negative, have %v",
				n.name, n.value)
		}
	}

	if c.EntropyDecay <= 0 || c.EntropyDecay > 1 {
		return fmt.Errorf("validate: entropy decay must be in (0, 1], have %v",
			c.EntropyDecay)
	}
	if c.ReversionThresholdDecay <= 0 || c.ReversionThresholdDecay > 1 {
		return fmt.Errorf("validate: reversion threshold decay must be in "+
			"(0, 1], have %v", c.ReversionThresholdDecay)
	}

	switch c.Solver {
	case solver.Adam, solver.RMSProp, solver.Vanilla:
	default:
		return fmt.Errorf("validate: unknown solver %q", c.Solver)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
