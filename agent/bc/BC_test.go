package bc

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/samuelfneumann/armppo/agent/policy"
	env "github.com/samuelfneumann/armppo/environment"
	"github.com/samuelfneumann/armppo/environment/arm"
	"github.com/samuelfneumann/armppo/environment/arm/reacher"
	"github.com/samuelfneumann/armppo/initwfn"
	"github.com/samuelfneumann/armppo/network"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/spatial/r2"
)

func newModel(t *testing.T) *policy.ActorCritic {
	t.Helper()
	bounds := []r1.Interval{{Min: -1, Max: 1}, {Min: -1, Max: 1}}
	actionMap, err := env.NewGridActionMap(bounds, 3)
	if err != nil {
		t.Fatal(err)
	}
	init, err := initwfn.NewGlorotU(1.0, 0)
	if err != nil {
		t.Fatal(err)
	}
	model, err := policy.New(2, actionMap.Len(), actionMap, []int{8}, []int{4},
		network.TanH(), init.InitWFn(), 0)
	if err != nil {
		t.Fatal(err)
	}
	return model
}

// separable returns demonstrations where the expert pushes both joints
// against the sign of the first state feature
func separable(n int) Demonstrations {
	var d Demonstrations
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			d.States = append(d.States, []float64{1, 0.1 * float64(i%5)})
			d.Actions = append(d.Actions, []float64{-0.9, -1.1})
		} else {
			d.States = append(d.States, []float64{-1, 0.1 * float64(i%5)})
			d.Actions = append(d.Actions, []float64{1, 0.8})
		}
	}
	return d
}

func TestLabels(t *testing.T) {
	model := newModel(t)
	labels, err := separable(4).Labels(model.ActionMap())
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{0, 8, 0, 8}; !reflect.DeepEqual(labels, want) {
		t.Errorf("want labels %v, have %v", want, labels)
	}
}

func TestTrainImitates(t *testing.T) {
	model := newModel(t)
	c := DefaultConfig()
	c.Epochs = 60
	c.BatchSize = 16
	c.LearningRate = 1e-2
	c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	learner, err := New(model, c)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// 70 demonstrations give 4 full mini-batches per epoch
	losses, err := learner.Train(context.Background(), separable(70))
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if len(losses) != c.Epochs {
		t.Fatalf("want %d losses, have %d", c.Epochs, len(losses))
	}
	if losses[len(losses)-1] >= losses[0] {
		t.Errorf("loss did not decrease: %v -> %v", losses[0],
			losses[len(losses)-1])
	}

	for state, want := range map[[2]float64]int{{1, 0.2}: 0, {-1, 0.2}: 8} {
		index, _, err := model.Greedy(state[:])
		if err != nil {
			t.Fatal(err)
		}
		if index != want {
			t.Errorf("state %v: want action %d, have %d", state, want, index)
		}
	}
}

func TestTrainErrors(t *testing.T) {
	c := DefaultConfig()
	c.BatchSize = 8
	learner, err := New(newModel(t), c)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := learner.Train(context.Background(), separable(4)); err == nil {
		t.Errorf("expected error with fewer demonstrations than batch size")
	}
	bad := separable(10)
	bad.Actions = bad.Actions[:9]
	if _, err := learner.Train(context.Background(), bad); err == nil {
		t.Errorf("expected error for unpaired demonstrations")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := learner.Train(ctx, separable(10)); err == nil {
		t.Errorf("expected error for cancelled context")
	}

	c.Epochs = 0
	if _, err := New(newModel(t), c); err == nil {
		t.Errorf("expected error for zero epochs")
	}
}

func TestRecordAndSave(t *testing.T) {
	e, err := reacher.New(arm.Default(), r2.Vec{X: 0, Y: 1.5},
		mat.NewVecDense(2, []float64{0, 0}), 0.99)
	if err != nil {
		t.Fatal(err)
	}
	expert := func([]float64) (*mat.VecDense, error) {
		return mat.NewVecDense(2, []float64{1, 0}), nil
	}

	d, err := Record(e, expert, 5)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if d.Len() != 5 || d.States[0][0] != 0 || d.States[1][0] <= 0 {
		t.Fatalf("unexpected demonstrations %+v", d)
	}

	path := filepath.Join(t.TempDir(), "demos.gob")
	if err := d.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadDemonstrations(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(d, loaded) {
		t.Errorf("loaded demonstrations differ")
	}
}
