// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import (
	ts "github.com/samuelfneumann/armppo/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Environment implements a simulated environment with a configurable
// initial state. Reset returns the environment to its initial state.
//
// Environments are not safe for concurrent use.
type Environment interface {
	// Reset resets the environment to its initial state and returns
	// the first TimeStep of the new episode
	Reset() (ts.TimeStep, error)

	// Step takes one environmental step with the argument control
	// vector, returning the next TimeStep and whether the episode has
	// ended.
	Step(action *mat.VecDense) (ts.TimeStep, bool, error)

	// Init returns a copy of the state that Reset returns to
	Init() *mat.VecDense

	// SetInit sets the state that Reset returns to
	SetInit(*mat.VecDense) error

	CurrentTimeStep() ts.TimeStep
	ObservationSpec() Spec
	ActionSpec() Spec
}

// Renderer is an Environment that can draw its current state to an
// image file
type Renderer interface {
	Environment
	Render(filename string) error
}
