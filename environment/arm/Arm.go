// Package arm implements the kinematics and rendering shared by the
// planar robotic arm environments.
//
// An Arm is a serial chain of rigid links anchored at the origin and
// connected by revolute joints. Joint angles are measured relative to
// the previous link, with the first joint measured from the positive
// x-axis. All angles are kept in [-π, π).
package arm

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/armppo/utils/floatutils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// Default physical constants
	LinkLength       float64 = 1.0 // Metres
	MaxJointVelocity float64 = 1.0 // Radians per second
	Dt               float64 = 0.1 // Seconds per environmental step
	MaxAngle         float64 = math.Pi
	MinAngle         float64 = -MaxAngle
)

// Arm is a planar serial manipulator
type Arm struct {
	links          []float64
	velocityBounds r1.Interval
	angleBounds    r1.Interval
	dt             float64
}

// New returns a new Arm with the given link lengths, whose joints can
// move at most maxVelocity radians per second, and whose state is
// integrated with time steps of dt seconds.
func New(links []float64, maxVelocity, dt float64) (*Arm, error) {
	if len(links) == 0 {
		return nil, fmt.Errorf("new: an arm needs at least one link")
	}
	for i, l := range links {
		if l <= 0 {
			return nil, fmt.Errorf("new: link %d has non-positive length %v",
				i, l)
		}
	}
	if maxVelocity <= 0 || dt <= 0 {
		return nil, fmt.Errorf("new: max velocity (%v) and dt (%v) must be "+
			"positive", maxVelocity, dt)
	}

	return &Arm{
		links:          append([]float64(nil), links...),
		velocityBounds: r1.Interval{Min: -maxVelocity, Max: maxVelocity},
		angleBounds:    r1.Interval{Min: MinAngle, Max: MaxAngle},
		dt:             dt,
	}, nil
}

// Default returns a two link arm with the default physical constants
func Default() *Arm {
	a, err := New([]float64{LinkLength, LinkLength}, MaxJointVelocity, Dt)
	if err != nil {
		panic(fmt.Sprintf("default: %v", err))
	}
	return a
}

// Joints returns the number of revolute joints of the arm
func (a *Arm) Joints() int {
	return len(a.links)
}

// Reach returns the maximum distance of the fingertip from the origin
func (a *Arm) Reach() float64 {
	return floats.Sum(a.links)
}

// AngleBounds returns the bounds of each joint angle
func (a *Arm) AngleBounds() []r1.Interval {
	bounds := make([]r1.Interval, len(a.links))
	for i := range bounds {
		bounds[i] = a.angleBounds
	}
	return bounds
}

// VelocityBounds returns the bounds of each joint velocity, which
// are the bounds of the control vectors of the arm
func (a *Arm) VelocityBounds() []r1.Interval {
	bounds := make([]r1.Interval, len(a.links))
	for i := range bounds {
		bounds[i] = a.velocityBounds
	}
	return bounds
}

// Positions returns the positions of the base, each joint, and the
// fingertip, in that order, for the given joint angles.
func (a *Arm) Positions(angles []float64) []r2.Vec {
	if len(angles) != len(a.links) {
		panic(fmt.Sprintf("positions: want %d angles, have %d",
			len(a.links), len(angles)))
	}

	positions := make([]r2.Vec, len(a.links)+1)
	var heading float64
	for i, l := range a.links {
		heading += angles[i]
		step := r2.Vec{X: l * math.Cos(heading), Y: l * math.Sin(heading)}
		positions[i+1] = r2.Add(positions[i], step)
	}
	return positions
}

// Fingertip returns the position of the end of the final link
func (a *Arm) Fingertip(angles []float64) r2.Vec {
	positions := a.Positions(angles)
	return positions[len(positions)-1]
}

// Move returns the joint angles reached after applying the joint
// velocities for one time step. Velocities are clipped to the legal
// range and the resulting angles are wrapped to [-π, π).
func (a *Arm) Move(angles, velocities []float64) []float64 {
	if len(velocities) != len(a.links) {
		panic(fmt.Sprintf("move: want %d velocities, have %d",
			len(a.links), len(velocities)))
	}

	next := make([]float64, len(angles))
	for i := range angles {
		v := floatutils.ClipInterval(velocities[i], a.velocityBounds)
		next[i] = floatutils.WrapInterval(angles[i]+v*a.dt, a.angleBounds)
	}
	return next
}
