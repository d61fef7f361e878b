// Package reacher implements planar arm reaching environments. In
// these environments, a two link arm must move its fingertip to a
// fixed target position, optionally without touching a wall.
package reacher

import (
	"fmt"

	env "github.com/samuelfneumann/armppo/environment"
	"github.com/samuelfneumann/armppo/environment/arm"
	ts "github.com/samuelfneumann/armppo/timestep"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	TargetRadius float64 = 0.05 // Metres, rendering only
)

// Reacher implements the reacher environment. The state feature
// vectors are the joint angles of the arm:
//
//		v ⃗	= [θ1, θ2], where:
//		θ1 = angle of the first link measured from the positive x-axis
//		θ2 = angle of the second link measured from the first link
//
// Actions are joint velocities, clipped to the arm's velocity bounds.
// The reward at each step is the negative distance between the
// fingertip and the target after the step is taken.
//
// If walls are given, a step that would bring any link into contact
// with a wall is blocked: the arm does not move and the reward is
// additionally decreased by the wall penalty.
//
// Episodes never end on their own; callers decide the horizon.
type Reacher struct {
	arm         *arm.Arm
	target      r2.Vec
	walls       []arm.Wall
	wallPenalty float64
	discount    float64

	init     *mat.VecDense
	lastStep ts.TimeStep
}

// New returns a new Reacher with the given arm, target, and initial
// joint angles.
func New(a *arm.Arm, target r2.Vec, init *mat.VecDense,
	discount float64) (*Reacher, error) {
	return newReacher(a, target, nil, 0, init, discount)
}

// newReacher returns a new Reacher with optional walls
func newReacher(a *arm.Arm, target r2.Vec, walls []arm.Wall,
	penalty float64, init *mat.VecDense, discount float64) (*Reacher,
	error) {
	if penalty < 0 {
		return nil, fmt.Errorf("new: wall penalty must be non-negative, "+
			"have %v", penalty)
	}
	r := &Reacher{
		arm:         a,
		target:      target,
		walls:       append([]arm.Wall(nil), walls...),
		wallPenalty: penalty,
		discount:    discount,
	}
	if err := r.SetInit(init); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if r.blocked(init.RawVector().Data) {
		return nil, fmt.Errorf("new: initial state touches a wall")
	}
	if _, err := r.Reset(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	return r, nil
}

// Reset resets the environment to its initial state
func (r *Reacher) Reset() (ts.TimeStep, error) {
	obs := mat.VecDenseCopyOf(r.init)
	r.lastStep = ts.New(ts.First, 0, r.discount, obs, 0)
	return r.lastStep, nil
}

// Step takes one environmental step with the given joint velocities
func (r *Reacher) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	if action.Len() != r.arm.Joints() {
		return ts.TimeStep{}, false, fmt.Errorf("step: action has "+
			"dimension %d, expected %d", action.Len(), r.arm.Joints())
	}

	angles := r.lastStep.Observation.RawVector().Data
	next := r.arm.Move(angles, action.RawVector().Data)

	var penalty float64
	if r.blocked(next) {
		next = append([]float64(nil), angles...)
		penalty = r.wallPenalty
	}

	reward := -r2.Norm(r2.Sub(r.arm.Fingertip(next), r.target)) - penalty
	obs := mat.NewVecDense(len(next), next)
	r.lastStep = ts.New(ts.Mid, reward, r.discount, obs,
		r.lastStep.Number+1)

	return r.lastStep, false, nil
}

// blocked returns whether the arm touches a wall at the given angles
func (r *Reacher) blocked(angles []float64) bool {
	if len(r.walls) == 0 {
		return false
	}
	positions := r.arm.Positions(angles)
	for _, w := range r.walls {
		if w.Blocks(positions) {
			return true
		}
	}
	return false
}

// Init returns a copy of the initial state
func (r *Reacher) Init() *mat.VecDense {
	return mat.VecDenseCopyOf(r.init)
}

// SetInit sets the state that Reset returns to. The state is copied.
func (r *Reacher) SetInit(state *mat.VecDense) error {
	if state == nil || state.Len() != r.arm.Joints() {
		return fmt.Errorf("setinit: state must have dimension %d",
			r.arm.Joints())
	}
	r.init = mat.VecDenseCopyOf(state)
	return nil
}

// CurrentTimeStep returns the last TimeStep the environment produced
func (r *Reacher) CurrentTimeStep() ts.TimeStep {
	return r.lastStep
}

// Target returns the target position
func (r *Reacher) Target() r2.Vec {
	return r.target
}

// ObservationSpec returns the observation specification
func (r *Reacher) ObservationSpec() env.Spec {
	return env.NewBoxSpec(env.Observation, r.arm.AngleBounds())
}

// ActionSpec returns the action specification
func (r *Reacher) ActionSpec() env.Spec {
	return env.NewBoxSpec(env.Action, r.arm.VelocityBounds())
}

// Render saves an image of the current configuration to a PNG file
func (r *Reacher) Render(filename string) error {
	c := arm.NewCanvas(r.arm.Reach())
	for _, w := range r.walls {
		c.DrawWall(w)
	}
	c.DrawTarget(r.target, TargetRadius)
	c.DrawArm(r.arm.Positions(r.lastStep.Observation.RawVector().Data))

	if err := c.SavePNG(filename); err != nil {
		return fmt.Errorf("render: %v", err)
	}
	return nil
}
