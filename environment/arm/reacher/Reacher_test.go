package reacher

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/armppo/environment"
	"github.com/samuelfneumann/armppo/environment/arm"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// Reacher must satisfy the environment interfaces
var _ environment.Renderer = &Reacher{}

func TestReacherReward(t *testing.T) {
	target := r2.Vec{X: 0, Y: 2}
	r, err := New(arm.Default(), target, mat.NewVecDense(2, []float64{0, 0}),
		0.99)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	step, done, err := r.Step(mat.NewVecDense(2, []float64{0, 0}))
	if err != nil || done {
		t.Fatalf("step: done %v err %v", done, err)
	}
	want := -math.Sqrt(8)
	if math.Abs(step.Reward-want) > 1e-12 {
		t.Errorf("want reward %v, have %v", want, step.Reward)
	}

	// Moving towards the target increases reward
	next, _, _ := r.Step(mat.NewVecDense(2, []float64{1, 0}))
	if next.Reward <= step.Reward {
		t.Errorf("reward did not increase: %v -> %v", step.Reward,
			next.Reward)
	}
	if next.Number != 2 {
		t.Errorf("want step number 2, have %v", next.Number)
	}
}

func TestReacherInit(t *testing.T) {
	init := mat.NewVecDense(2, []float64{0.1, 0.2})
	r, err := New(arm.Default(), r2.Vec{X: 1, Y: 1}, init, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// The environment keeps its own copy
	init.SetVec(0, 5)
	if r.Init().AtVec(0) != 0.1 {
		t.Errorf("init aliased caller's vector")
	}

	if err := r.SetInit(mat.NewVecDense(2, []float64{1, 1})); err != nil {
		t.Fatalf("setinit: %v", err)
	}
	step, err := r.Reset()
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !step.First() || step.Observation.AtVec(0) != 1 {
		t.Errorf("reset did not return to the new initial state: %v",
			step.Observation.RawVector().Data)
	}

	if err := r.SetInit(mat.NewVecDense(3, nil)); err == nil {
		t.Errorf("expected error for wrong state dimension")
	}
	if _, _, err := r.Step(mat.NewVecDense(1, nil)); err == nil {
		t.Errorf("expected error for wrong action dimension")
	}
}

func TestReacherWall(t *testing.T) {
	wall := arm.Wall{
		From:      r2.Vec{X: 1.5, Y: -1},
		To:        r2.Vec{X: 1.5, Y: 0.05},
		Thickness: 0.02,
	}
	start := mat.NewVecDense(2, []float64{0.3, 0})
	r, err := NewWall(arm.Default(), r2.Vec{X: 2, Y: 0}, []arm.Wall{wall},
		WallPenalty, start, 1)
	if err != nil {
		t.Fatalf("newwall: %v", err)
	}

	// Rotating down into the wall is blocked and penalized
	var step = r.CurrentTimeStep()
	for i := 0; i < 10; i++ {
		step, _, _ = r.Step(mat.NewVecDense(2, []float64{-1, 0}))
	}
	if step.Observation.AtVec(0) <= 0 {
		t.Errorf("arm passed through the wall: %v",
			step.Observation.RawVector().Data)
	}
	dist := r2.Norm(r2.Sub(arm.Default().Fingertip(
		step.Observation.RawVector().Data), r2.Vec{X: 2, Y: 0}))
	if math.Abs(step.Reward-(-dist-WallPenalty)) > 1e-12 {
		t.Errorf("want penalized reward %v, have %v", -dist-WallPenalty,
			step.Reward)
	}

	if _, err := NewWall(arm.Default(), r2.Vec{}, []arm.Wall{wall}, 1,
		mat.NewVecDense(2, []float64{0, 0}), 1); err == nil {
		t.Errorf("expected error for initial state touching the wall")
	}
}

func TestReacherRender(t *testing.T) {
	r, err := NewWall(arm.Default(), r2.Vec{X: 1.5, Y: 1}, []arm.Wall{DefaultWall()},
		WallPenalty, mat.NewVecDense(2, []float64{-0.5, 0}), 1)
	if err != nil {
		t.Fatalf("newwall: %v", err)
	}
	if err := r.Render(filepath.Join(t.TempDir(), "reacher.png")); err != nil {
		t.Fatalf("render: %v", err)
	}
}
