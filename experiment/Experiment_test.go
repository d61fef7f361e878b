package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/armppo/agent/policy"
	"github.com/samuelfneumann/armppo/agent/ppo"
	"github.com/samuelfneumann/armppo/environment/envconfig"
	"github.com/samuelfneumann/armppo/experiment/checkpointer"
	"github.com/samuelfneumann/armppo/experiment/tracker"
	"github.com/samuelfneumann/armppo/initwfn"
	"github.com/samuelfneumann/armppo/network"
)

type counter int

func (c *counter) Increment() { *c++ }

type failing struct{}

func (failing) Track(ppo.Iteration) error { return nil }
func (failing) Save() error { return errors.New("disk full") }

func newReacherLearner(t *testing.T, iterations int) *ppo.Learner {
	t.Helper()
	setup, err := envconfig.Default(envconfig.Reacher).Create(0)
	if err != nil {
		t.Fatal(err)
	}
	init, err := initwfn.NewGlorotU(1.0, 0)
	if err != nil {
		t.Fatal(err)
	}
	model, err := policy.New(setup.Env.ObservationSpec().Len(),
		setup.ActionMap.Len(), setup.ActionMap, []int{8}, []int{8},
		network.ReLU(), init.InitWFn(), 0)
	if err != nil {
		t.Fatal(err)
	}

	c := ppo.DefaultConfig()
	c.StepsPerTrajectory = 5
	c.TrajectoriesPerBatch = 2
	c.Epochs = 2
	c.Iterations = iterations
	c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	l, err := ppo.New(setup.Env, model, setup.Starter, c)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	l := newReacherLearner(t, 3)

	rewards := tracker.NewMeanReward(filepath.Join(dir, "rewards.bin"))
	ckpt, err := checkpointer.NewNIteration(1,
		func() checkpointer.Serializable { return l.BestPolicy() },
		checkpointer.FilenameEnumerator(0, filepath.Join(dir, "best"), ".gob"))
	if err != nil {
		t.Fatal(err)
	}

	exp := NewPPO(l, []tracker.Tracker{rewards},
		[]checkpointer.Checkpointer{ckpt})
	var progress counter
	exp.SetProgress(&progress)

	if err := exp.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := exp.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	if progress != 3 || l.Completed() != 3 {
		t.Errorf("want 3 iterations, have %v (progress %v)", l.Completed(),
			progress)
	}
	data, err := tracker.LoadData(filepath.Join(dir, "rewards.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 3 {
		t.Errorf("want 3 tracked rewards, have %v", len(data))
	}
	for i := 1; i <= 3; i++ {
		name := filepath.Join(dir, fmt.Sprintf("best%d.gob", i))
		if _, err := policy.Load(name); err != nil {
			t.Errorf("checkpoint %d: %v", i, err)
		}
	}

	exp.Register(failing{})
	if err := exp.Save(); err == nil {
		t.Errorf("expected tracker save error")
	}
}

func TestRunCancelled(t *testing.T) {
	exp := NewPPO(newReacherLearner(t, 2), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := exp.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, have %v", err)
	}
}
