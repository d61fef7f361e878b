// Package envconfig provides configuration structs for configuring
// arm environments with default physical parameters, together with
// the discrete action map and optional random initial state box that
// a learner uses with them. Environment configurations in this package
// are serializable with JSON, YAML, and mapstructure.
package envconfig

import (
	"fmt"
	"math"

	env "github.com/samuelfneumann/armppo/environment"
	"github.com/samuelfneumann/armppo/environment/arm"
	"github.com/samuelfneumann/armppo/environment/arm/pusher"
	"github.com/samuelfneumann/armppo/environment/arm/reacher"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/spatial/r2"
)

// EnvName stores the name of environments that can be configured with
// this package
type EnvName string

// Environments available for configuration
const (
	Reacher     EnvName = "Reacher"
	ReacherWall EnvName = "ReacherWall"
	Pusher      EnvName = "Pusher"
)

// Interval is a closed interval of the real line
type Interval struct {
	Min float64 `json:"min" yaml:"min" mapstructure:"min"`
	Max float64 `json:"max" yaml:"max" mapstructure:"max"`
}

// Config implements a specific configuration of an arm environment.
// Zero values select the defaults of the named environment.
type Config struct {
	Environment EnvName `json:"environment" yaml:"environment" mapstructure:"environment"`
	Discount    float64 `json:"discount" yaml:"discount" mapstructure:"discount"`

	// Init is the initial state of the environment
	Init []float64 `json:"init,omitempty" yaml:"init,omitempty" mapstructure:"init"`

	// Target is the target position of the fingertip (Reacher,
	// ReacherWall) or the goal position of the puck (Pusher)
	Target []float64 `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`

	// ActionLevels is the number of evenly spaced joint velocities per
	// joint in the discrete action set
	ActionLevels int `json:"action_levels" yaml:"action_levels" mapstructure:"action_levels"`

	// RandomInit, if non-empty, is the box initial states are sampled
	// from at the start of each trajectory
	RandomInit []Interval `json:"random_init,omitempty" yaml:"random_init,omitempty" mapstructure:"random_init"`

	WallPenalty float64 `json:"wall_penalty,omitempty" yaml:"wall_penalty,omitempty" mapstructure:"wall_penalty"`
}

// Setup is everything needed to train on a configured environment
type Setup struct {
	Env       env.Renderer
	ActionMap *env.ActionMap

	// Starter is nil if initial states are not randomized
	Starter env.Starter
}

// Default returns the default configuration of the named environment
func Default(name EnvName) Config {
	c := Config{
		Environment:  name,
		Discount:     0.99,
		ActionLevels: 3,
	}
	switch name {
	case Reacher:
		c.Init = []float64{0, 0}
		c.Target = []float64{0, 1.5}
	case ReacherWall:
		c.Init = []float64{-0.5, 0}
		c.Target = []float64{1.5, 1.0}
		c.WallPenalty = reacher.WallPenalty
	case Pusher:
		c.Init = []float64{-0.3, 1.2, 1.0, 0.8}
		c.Target = []float64{0.2, 1.6}
	}
	return c
}

// Validate returns an error if the Config is illegal
func (c Config) Validate() error {
	switch c.Environment {
	case Reacher, ReacherWall, Pusher:
	default:
		return fmt.Errorf("validate: no such environment %q", c.Environment)
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1], have %v",
			c.Discount)
	}
	if c.ActionLevels < 2 {
		return fmt.Errorf("validate: need at least 2 action levels, have %v",
			c.ActionLevels)
	}
	if c.Target != nil && len(c.Target) != 2 {
		return fmt.Errorf("validate: target must be 2-dimensional")
	}
	if c.WallPenalty < 0 {
		return fmt.Errorf("validate: wall penalty must be non-negative")
	}
	for i, interval := range c.RandomInit {
		if interval.Min > interval.Max {
			return fmt.Errorf("validate: random init dimension %d has min "+
				"%v > max %v", i, interval.Min, interval.Max)
		}
	}
	return nil
}

// withDefaults fills in the zero fields of c from the defaults of its
// environment
func (c Config) withDefaults() Config {
	d := Default(c.Environment)
	if c.Init == nil {
		c.Init = d.Init
	}
	if c.Target == nil {
		c.Target = d.Target
	}
	if c.ActionLevels == 0 {
		c.ActionLevels = d.ActionLevels
	}
	if c.Environment == ReacherWall && c.WallPenalty == 0 {
		c.WallPenalty = d.WallPenalty
	}
	return c
}

// Create returns the environment described by the Config together with
// its action map and random initial state starter.
func (c Config) Create(seed uint64) (*Setup, error) {
	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	a := arm.Default()
	init := mat.NewVecDense(len(c.Init), append([]float64(nil), c.Init...))
	target := r2.Vec{X: c.Target[0], Y: c.Target[1]}

	var (
		e   env.Renderer
		err error
	)
	switch c.Environment {
	case Reacher:
		e, err = reacher.New(a, target, init, c.Discount)
	case ReacherWall:
		e, err = reacher.NewWall(a, target, []arm.Wall{reacher.DefaultWall()},
			c.WallPenalty, init, c.Discount)
	case Pusher:
		e, err = pusher.New(a, target, init, c.Discount)
	}
	if err != nil {
		return nil, fmt.Errorf("create: could not create %v: %v",
			c.Environment, err)
	}

	actionMap, err := env.NewGridActionMap(a.VelocityBounds(), c.ActionLevels)
	if err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	setup := &Setup{Env: e, ActionMap: actionMap}
	if len(c.RandomInit) > 0 {
		if len(c.RandomInit) != e.ObservationSpec().Len() {
			return nil, fmt.Errorf("create: random init box has %d "+
				"dimensions, environment state has %d", len(c.RandomInit),
				e.ObservationSpec().Len())
		}
		bounds := make([]r1.Interval, len(c.RandomInit))
		for i, interval := range c.RandomInit {
			bounds[i] = r1.Interval{Min: interval.Min, Max: interval.Max}
		}
		starter, err := env.NewUniformStarter(bounds, seed)
		if err != nil {
			return nil, fmt.Errorf("create: %v", err)
		}
		setup.Starter = starter
	}

	return setup, nil
}

// AngleBox returns a random initial state box covering joint angles
// within spread radians of the given angles
func AngleBox(angles []float64, spread float64) []Interval {
	box := make([]Interval, len(angles))
	for i, a := range angles {
		box[i] = Interval{
			Min: math.Max(a-spread, arm.MinAngle),
			Max: math.Min(a+spread, arm.MaxAngle),
		}
	}
	return box
}
