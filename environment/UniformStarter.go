package environment

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
)

// UniformStarter samples starting states uniformly from a box
type UniformStarter struct {
	bounds []r1.Interval
	seed   uint64
	rand   *distmv.Uniform
}

// NewUniformStarter returns a UniformStarter over the given box. Each
// interval must be non-empty.
func NewUniformStarter(bounds []r1.Interval, seed uint64) (*UniformStarter,
	error) {
	if len(bounds) == 0 {
		return nil, fmt.Errorf("newuniformstarter: no bounds given")
	}
	for i, b := range bounds {
		if b.Min > b.Max {
			return nil, fmt.Errorf("newuniformstarter: dimension %d has "+
				"min %v > max %v", i, b.Min, b.Max)
		}
	}
	bounds = append([]r1.Interval(nil), bounds...)

	source := rand.NewSource(seed)
	rand := distmv.NewUniform(bounds, source)

	return &UniformStarter{bounds, seed, rand}, nil
}

// Start samples a new starting state
func (u *UniformStarter) Start() *mat.VecDense {
	return mat.NewVecDense(len(u.bounds), u.rand.Rand(nil))
}

// Bounds returns a copy of the box that starting states are sampled
// from
func (u *UniformStarter) Bounds() []r1.Interval {
	return append([]r1.Interval(nil), u.bounds...)
}
