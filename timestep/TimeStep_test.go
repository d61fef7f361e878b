package timestep

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestState(t *testing.T) {
	obs := mat.NewVecDense(2, []float64{0.5, -1})
	step := New(First, 0, 0.99, obs, 0)
	if !step.First() || step.Last() {
		t.Errorf("unexpected step type %v", step.StepType)
	}

	state := step.State()
	state[0] = 10
	if obs.AtVec(0) != 0.5 {
		t.Errorf("state shares storage with the observation")
	}

	if (TimeStep{}).State() != nil {
		t.Errorf("expected nil state without observation")
	}
}

func TestString(t *testing.T) {
	step := New(Mid, -1.25, 0.9, nil, 3)
	if got, want := step.String(), "timestep(mid #3 reward=-1.2500 discount=0.90)"; got != want {
		t.Errorf("want %q, have %q", want, got)
	}
	if got := StepType(7).String(); got != "StepType(7)" {
		t.Errorf("unexpected name %q", got)
	}
}
