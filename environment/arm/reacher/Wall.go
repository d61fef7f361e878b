package reacher

import (
	"github.com/samuelfneumann/armppo/environment/arm"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	WallThickness float64 = 0.1
	WallPenalty   float64 = 1.0
)

// DefaultWall returns a vertical wall between the arm's default
// starting configuration and a target on the far side of the wall,
// so that the arm has to reach around it.
func DefaultWall() arm.Wall {
	return arm.Wall{
		From:      r2.Vec{X: 1.2, Y: 0.3},
		To:        r2.Vec{X: 1.2, Y: 1.5},
		Thickness: WallThickness,
	}
}

// NewWall returns a new reacher environment with walls. Steps that
// bring the arm into contact with a wall are blocked and penalized by
// penalty.
func NewWall(a *arm.Arm, target r2.Vec, walls []arm.Wall, penalty float64,
	init *mat.VecDense, discount float64) (*Reacher, error) {
	return newReacher(a, target, walls, penalty, init, discount)
}
