// Package pusher implements a planar arm environment where the arm
// must push a puck to a goal position on a table. Puck dynamics are
// simulated with Box2D.
package pusher

import (
	"fmt"

	"github.com/ByteArena/box2d"
	env "github.com/samuelfneumann/armppo/environment"
	"github.com/samuelfneumann/armppo/environment/arm"
	ts "github.com/samuelfneumann/armppo/timestep"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	PuckRadius      float64 = 0.1  // Metres
	PuckDensity     float64 = 1.0  // Kg per square metre
	PuckFriction    float64 = 0.3  // Coefficient of friction
	TableDamping    float64 = 5.0  // Linear damping from table friction
	FingertipRadius float64 = 0.05 // Metres
	TipCost         float64 = 0.1  // Weight of fingertip-puck distance
	GoalRadius      float64 = 0.05 // Metres, rendering only

	// Box2D integration
	SubSteps           int = 10
	VelocityIterations int = 8
	PositionIterations int = 3

	ObservationDims int = 4
)

// Pusher implements the pusher environment. State feature vectors are
// 4-dimensional and consist of the two joint angles of the arm and the
// position of the puck:
//
//		v ⃗	= [θ1, θ2, x, y], where:
//		θ1   = angle of the first link measured from the positive x-axis
//		θ2   = angle of the second link measured from the first link
//		x, y = position of the centre of the puck
//
// Actions are joint velocities. The fingertip is a kinematic Box2D
// body which follows the arm and pushes the puck on contact. The table
// is modelled by damping the puck's velocity.
//
// The reward at each step is:
//
//		r = -‖puck - goal‖ - TipCost·‖fingertip - puck‖
//
// Episodes never end on their own; callers decide the horizon.
type Pusher struct {
	arm      *arm.Arm
	goal     r2.Vec
	discount float64

	world box2d.B2World
	puck  *box2d.B2Body
	tip   *box2d.B2Body

	init     *mat.VecDense
	lastStep ts.TimeStep
}

// New returns a new Pusher environment with the given arm, goal, and
// initial state [θ1, θ2, x, y].
func New(a *arm.Arm, goal r2.Vec, init *mat.VecDense,
	discount float64) (*Pusher, error) {
	if a.Joints() != 2 {
		return nil, fmt.Errorf("new: pusher needs a two link arm, have %d "+
			"links", a.Joints())
	}

	p := &Pusher{
		arm:      a,
		goal:     goal,
		discount: discount,
		world:    box2d.MakeB2World(box2d.MakeB2Vec2(0.0, 0.0)),
	}
	if err := p.SetInit(init); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	// Puck body
	puckDef := box2d.MakeB2BodyDef()
	puckDef.Type = 2 // Dynamic body
	puckDef.LinearDamping = TableDamping
	puckDef.AngularDamping = TableDamping
	puckDef.Bullet = true
	p.puck = p.world.CreateBody(&puckDef)

	puckShape := box2d.NewB2CircleShape()
	puckShape.M_radius = PuckRadius
	puckFix := box2d.MakeB2FixtureDef()
	puckFix.Shape = puckShape
	puckFix.Density = PuckDensity
	puckFix.Friction = PuckFriction
	puckFix.Restitution = 0.0
	p.puck.CreateFixtureFromDef(&puckFix)

	// Fingertip body
	tipDef := box2d.MakeB2BodyDef()
	tipDef.Type = 1 // Kinematic body
	p.tip = p.world.CreateBody(&tipDef)

	tipShape := box2d.NewB2CircleShape()
	tipShape.M_radius = FingertipRadius
	tipFix := box2d.MakeB2FixtureDef()
	tipFix.Shape = tipShape
	tipFix.Friction = PuckFriction
	p.tip.CreateFixtureFromDef(&tipFix)

	if _, err := p.Reset(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	return p, nil
}

// Reset resets the environment to its initial state
func (p *Pusher) Reset() (ts.TimeStep, error) {
	state := p.init.RawVector().Data
	angles := state[:2]

	fingertip := p.arm.Fingertip(angles)
	p.tip.SetTransform(box2d.MakeB2Vec2(fingertip.X, fingertip.Y), 0.0)
	p.tip.SetLinearVelocity(box2d.MakeB2Vec2(0.0, 0.0))

	p.puck.SetTransform(box2d.MakeB2Vec2(state[2], state[3]), 0.0)
	p.puck.SetLinearVelocity(box2d.MakeB2Vec2(0.0, 0.0))
	p.puck.SetAngularVelocity(0.0)
	p.puck.SetAwake(true)

	p.lastStep = ts.New(ts.First, 0, p.discount, mat.VecDenseCopyOf(p.init),
		0)
	return p.lastStep, nil
}

// Step takes one environmental step with the given joint velocities
func (p *Pusher) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	if action.Len() != p.arm.Joints() {
		return ts.TimeStep{}, false, fmt.Errorf("step: action has "+
			"dimension %d, expected %d", action.Len(), p.arm.Joints())
	}

	state := p.lastStep.Observation.RawVector().Data
	angles := p.arm.Move(state[:2], action.RawVector().Data)

	// Drive the fingertip from its current position to its next
	// position over the step
	from := p.arm.Fingertip(state[:2])
	to := p.arm.Fingertip(angles)
	dt := arm.Dt / float64(SubSteps)
	velocity := r2.Scale(1/arm.Dt, r2.Sub(to, from))

	p.tip.SetTransform(box2d.MakeB2Vec2(from.X, from.Y), 0.0)
	p.tip.SetLinearVelocity(box2d.MakeB2Vec2(velocity.X, velocity.Y))
	p.puck.SetAwake(true)
	for i := 0; i < SubSteps; i++ {
		p.world.Step(dt, VelocityIterations, PositionIterations)
	}
	p.tip.SetTransform(box2d.MakeB2Vec2(to.X, to.Y), 0.0)
	p.tip.SetLinearVelocity(box2d.MakeB2Vec2(0.0, 0.0))

	puckPos := p.puck.GetPosition()
	puck := r2.Vec{X: puckPos.X, Y: puckPos.Y}

	reward := -r2.Norm(r2.Sub(puck, p.goal)) -
		TipCost*r2.Norm(r2.Sub(to, puck))

	obs := mat.NewVecDense(ObservationDims, []float64{
		angles[0], angles[1], puck.X, puck.Y,
	})
	p.lastStep = ts.New(ts.Mid, reward, p.discount, obs,
		p.lastStep.Number+1)

	return p.lastStep, false, nil
}

// Init returns a copy of the initial state
func (p *Pusher) Init() *mat.VecDense {
	return mat.VecDenseCopyOf(p.init)
}

// SetInit sets the state that Reset returns to. The state is copied.
func (p *Pusher) SetInit(state *mat.VecDense) error {
	if state == nil || state.Len() != ObservationDims {
		return fmt.Errorf("setinit: state must have dimension %d",
			ObservationDims)
	}
	p.init = mat.VecDenseCopyOf(state)
	return nil
}

// CurrentTimeStep returns the last TimeStep the environment produced
func (p *Pusher) CurrentTimeStep() ts.TimeStep {
	return p.lastStep
}

// Goal returns the goal position of the puck
func (p *Pusher) Goal() r2.Vec {
	return p.goal
}

// ObservationSpec returns the observation specification
func (p *Pusher) ObservationSpec() env.Spec {
	reach := p.arm.Reach() + PuckRadius
	bounds := append(p.arm.AngleBounds(),
		r1.Interval{Min: -reach, Max: reach},
		r1.Interval{Min: -reach, Max: reach},
	)
	return env.NewBoxSpec(env.Observation, bounds)
}

// ActionSpec returns the action specification
func (p *Pusher) ActionSpec() env.Spec {
	return env.NewBoxSpec(env.Action, p.arm.VelocityBounds())
}

// Render saves an image of the current configuration to a PNG file
func (p *Pusher) Render(filename string) error {
	state := p.lastStep.Observation.RawVector().Data

	c := arm.NewCanvas(p.arm.Reach())
	c.DrawTarget(p.goal, GoalRadius)
	c.DrawObject(r2.Vec{X: state[2], Y: state[3]}, PuckRadius)
	c.DrawArm(p.arm.Positions(state[:2]))

	if err := c.SavePNG(filename); err != nil {
		return fmt.Errorf("render: %v", err)
	}
	return nil
}
