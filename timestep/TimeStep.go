// Package timestep implements the records environments return at each
// step of a fixed-horizon rollout
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes where in a rollout a TimeStep falls. Rollouts have
// a fixed horizon set by the learner, so environments only produce
// First and Mid steps; Last is reserved for environments that end
// episodes themselves.
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

var stepNames = [...]string{First: "first", Mid: "mid", Last: "last"}

func (s StepType) String() string {
	if s < First || s > Last {
		return fmt.Sprintf("StepType(%d)", int(s))
	}
	return stepNames[s]
}

// TimeStep is the outcome of a single environmental step: the reward
// for the transition into Observation, the environment's discount, and
// the number of steps taken since the last reset
type TimeStep struct {
	StepType    StepType
	Reward      float64
	Discount    float64
	Observation *mat.VecDense
	Number      int
}

// New returns a new TimeStep. The observation is not copied.
func New(t StepType, r, d float64, o *mat.VecDense, n int) TimeStep {
	return TimeStep{
		StepType:    t,
		Reward:      r,
		Discount:    d,
		Observation: o,
		Number:      n,
	}
}

// First returns whether the TimeStep directly follows a reset
func (t TimeStep) First() bool {
	return t.StepType == First
}

// Last returns whether the environment ended the episode
func (t TimeStep) Last() bool {
	return t.StepType == Last
}

// State returns a copy of the observation's data
func (t TimeStep) State() []float64 {
	if t.Observation == nil {
		return nil
	}
	return append([]float64(nil), t.Observation.RawVector().Data...)
}

func (t TimeStep) String() string {
	return fmt.Sprintf("timestep(%v #%d reward=%.4f discount=%.2f)",
		t.StepType, t.Number, t.Reward, t.Discount)
}
