package ppo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/samuelfneumann/armppo/agent/policy"
	env "github.com/samuelfneumann/armppo/environment"
	"github.com/samuelfneumann/armppo/initwfn"
	"github.com/samuelfneumann/armppo/network"
	ts "github.com/samuelfneumann/armppo/timestep"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat"
)

// counter is a toy environment whose state counts the steps taken
// since the last reset, offset by the initial state. It gives reward
// 1 on every step, regardless of the action. The actions taken are
// recorded.
type counter struct {
	init    *mat.VecDense
	last    ts.TimeStep
	fail    bool
	actions []float64
}

func newCounter(init float64) *counter {
	c := &counter{init: mat.NewVecDense(1, []float64{init})}
	c.Reset()
	return c
}

func (c *counter) Reset() (ts.TimeStep, error) {
	c.last = ts.New(ts.First, 0, 1, mat.VecDenseCopyOf(c.init), 0)
	return c.last, nil
}

func (c *counter) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	if c.fail {
		return ts.TimeStep{}, false, errors.New("step failed")
	}
	c.actions = append(c.actions, action.AtVec(0))
	obs := mat.NewVecDense(1, []float64{c.last.Observation.AtVec(0) + 1})
	c.last = ts.New(ts.Mid, 1, 1, obs, c.last.Number+1)
	return c.last, false, nil
}

func (c *counter) Init() *mat.VecDense { return mat.VecDenseCopyOf(c.init) }

func (c *counter) SetInit(s *mat.VecDense) error {
	if s.Len() != 1 {
		return fmt.Errorf("setinit: want length 1, have %d", s.Len())
	}
	c.init = mat.VecDenseCopyOf(s)
	return nil
}

func (c *counter) CurrentTimeStep() ts.TimeStep { return c.last }

func (c *counter) ObservationSpec() env.Spec {
	return env.NewBoxSpec(env.Observation, []r1.Interval{{Min: -100, Max: 100}})
}

func (c *counter) ActionSpec() env.Spec {
	return env.NewBoxSpec(env.Action, []r1.Interval{{Min: -1, Max: 1}})
}

// fixedStarter always starts from the same state
type fixedStarter float64

func (f fixedStarter) Start() *mat.VecDense {
	return mat.NewVecDense(1, []float64{float64(f)})
}

func newTestLearner(t *testing.T, e env.Environment, starter env.Starter,
	c Config) *Learner {
	t.Helper()
	actionMap, err := env.NewGridActionMap(e.ActionSpec().Bounds(), 3)
	if err != nil {
		t.Fatal(err)
	}
	init, err := initwfn.NewGlorotU(1.0, 1)
	if err != nil {
		t.Fatal(err)
	}
	model, err := policy.New(e.ObservationSpec().Len(), actionMap.Len(),
		actionMap, []int{4}, []int{4}, network.TanH(), init.InitWFn(), 1)
	if err != nil {
		t.Fatal(err)
	}

	c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	l, err := New(e, model, starter, c)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return l
}

func smallConfig() Config {
	c := DefaultConfig()
	c.StepsPerTrajectory = 4
	c.TrajectoriesPerBatch = 3
	c.Epochs = 2
	c.Iterations = 2
	c.LearningRate = 1e-3
	return c
}

func TestDiscountedReturns(t *testing.T) {
	rewards := []float64{1, -2, 0.5, 3, 7}
	const h, gamma = 4, 0.9

	returns := DiscountedReturns(rewards, h, gamma)
	if len(returns) != h {
		t.Fatalf("want %d returns, have %d", h, len(returns))
	}
	for i := 0; i < h; i++ {
		next := 0.0
		if i+1 < h {
			next = returns[i+1]
		}
		if want := rewards[i] + gamma*next; math.Abs(returns[i]-want) > 1e-12 {
			t.Errorf("return %d: want(%v) have(%v)", i, want, returns[i])
		}
	}
	if want := 3.0; returns[3] != want {
		t.Errorf("final return ignores reward past horizon: want(%v) "+
			"have(%v)", want, returns[3])
	}
}

func TestNormalizeReturns(t *testing.T) {
	returns := []float64{3, -1, 4, 1, 5, -9, 2, 6}
	normalized := NormalizeReturns(returns)

	mean, std := stat.MeanStdDev(normalized, nil)
	if math.Abs(mean) > 1e-9 {
		t.Errorf("mean %v, expected 0", mean)
	}
	if math.Abs(std*std-1) > 1e-6 {
		t.Errorf("variance %v, expected 1", std*std)
	}

	for _, g := range NormalizeReturns([]float64{2, 2, 2}) {
		if g != 0 {
			t.Errorf("constant returns should normalize to 0, have %v", g)
		}
	}
}

func TestTrackerReversion(t *testing.T) {
	tests := []struct {
		name      string
		rewards   []float64
		decisions []Decision
	}{
		{"revert", []float64{10, 10, 1}, []Decision{Improved, Kept, Reverted}},
		{"small drop", []float64{10, 9}, []Decision{Improved, Kept}},
		{"negative best", []float64{-10, -20}, []Decision{Improved, Reverted}},
		{"negative small drop", []float64{-10, -11}, []Decision{Improved, Kept}},
		{"zero best", []float64{0, -100}, []Decision{Improved, Kept}},
		{"improve", []float64{1, 2, 3}, []Decision{Improved, Improved, Improved}},
	}

	for _, test := range tests {
		tracker := NewTracker()
		for i, r := range test.rewards {
			if d := tracker.Observe(r, 0.2); d != test.decisions[i] {
				t.Errorf("%v: reward %d: want %v, have %v", test.name, i,
					test.decisions[i], d)
			}
		}
		if !floats.Equal(tracker.History(), test.rewards) {
			t.Errorf("%v: history %v", test.name, tracker.History())
		}
	}
}

func TestScheduler(t *testing.T) {
	c := DefaultConfig()
	c.EntropyCoefficient = 1e-3
	c.EntropyDecay = 0.999
	c.ReversionThreshold = 0.2
	c.ReversionThresholdDecay = 0.99
	c.MinReversionThreshold = 0.1

	s := NewScheduler(c)
	const n = 50
	for i := 0; i < n; i++ {
		s.Step()
	}
	if want := 1e-3 * math.Pow(0.999, n); math.Abs(s.EntropyCoefficient()-want) > 1e-15 {
		t.Errorf("entropy: want(%v) have(%v)", want, s.EntropyCoefficient())
	}
	want := math.Max(0.2*math.Pow(0.99*0.99, n), 0.1)
	if math.Abs(s.ReversionThreshold()-want) > 1e-12 {
		t.Errorf("threshold: want(%v) have(%v)", want, s.ReversionThreshold())
	}

	for i := 0; i < 1000; i++ {
		s.Step()
	}
	if s.ReversionThreshold() != 0.1 {
		t.Errorf("threshold not floored: %v", s.ReversionThreshold())
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}

	tests := map[string]func(*Config){
		"horizon":    func(c *Config) { c.StepsPerTrajectory = 0 },
		"batch":      func(c *Config) { c.TrajectoriesPerBatch = 0 },
		"epochs":     func(c *Config) { c.Epochs = 0 },
		"iterations": func(c *Config) { c.Iterations = -1 },
		"rate":       func(c *Config) { c.LearningRate = 0 },
		"discount":   func(c *Config) { c.Discount = 1.1 },
		"clip":       func(c *Config) { c.ClippingParam = 1 },
		"critic":     func(c *Config) { c.CriticCoefficient = -1 },
		"entropy":    func(c *Config) { c.EntropyCoefficient = -0.1 },
		"decay":      func(c *Config) { c.EntropyDecay = 0 },
		"threshold":  func(c *Config) { c.ReversionThresholdDecay = 2 },
		"solver":     func(c *Config) { c.Solver = "Momentum" },
	}
	for name, mutate := range tests {
		c := DefaultConfig()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%v: expected error", name)
		}
	}
}

func TestGenerateTrajectory(t *testing.T) {
	c := smallConfig()
	c.Discount = 1
	e := newCounter(5)
	l := newTestLearner(t, e, nil, c)

	traj, err := l.GenerateTrajectory()
	if err != nil {
		t.Fatalf("generatetrajectory: %v", err)
	}
	if r, _ := traj.States.Dims(); r != 4 {
		t.Errorf("want 4 states, have %v", r)
	}
	if len(traj.Rewards) != 5 || len(traj.Returns) != 4 {
		t.Errorf("want 5 rewards and 4 returns, have %v and %v",
			len(traj.Rewards), len(traj.Returns))
	}
	for i := 0; i < 4; i++ {
		if s := traj.States.At(i, 0); s != 5+float64(i) {
			t.Errorf("state %d: want %v, have %v", i, 5+i, s)
		}
	}
	if !floats.Equal(traj.Returns, []float64{4, 3, 2, 1}) {
		t.Errorf("unexpected returns %v", traj.Returns)
	}
	if got := e.Init().AtVec(0); got != 5 {
		t.Errorf("initial state changed to %v", got)
	}
}

func TestGenerateTrajectoryRandomInit(t *testing.T) {
	e := newCounter(5)
	l := newTestLearner(t, e, fixedStarter(-3), smallConfig())

	traj, err := l.GenerateTrajectory()
	if err != nil {
		t.Fatalf("generatetrajectory: %v", err)
	}
	if s := traj.States.At(0, 0); s != -3 {
		t.Errorf("trajectory should start at sampled state, started at %v", s)
	}
	if got := e.Init().AtVec(0); got != 5 {
		t.Errorf("initial state not restored: %v", got)
	}
	if got := e.CurrentTimeStep().Observation.AtVec(0); got != 5 {
		t.Errorf("environment not reset to initial state: %v", got)
	}
}

func TestGenerateTrajectoryRestoresOnError(t *testing.T) {
	e := newCounter(5)
	l := newTestLearner(t, e, fixedStarter(-3), smallConfig())
	e.fail = true

	if _, err := l.GenerateTrajectory(); err == nil {
		t.Fatalf("expected environment error to propagate")
	}
	if got := e.Init().AtVec(0); got != 5 {
		t.Errorf("initial state not restored after failure: %v", got)
	}
	if got := e.CurrentTimeStep().Observation.AtVec(0); got != 5 {
		t.Errorf("environment not reset after failure: %v", got)
	}
}

func TestSeedControlsSampling(t *testing.T) {
	c := smallConfig()
	c.StepsPerTrajectory = 30
	actions := func(seed uint64) []float64 {
		c.Seed = seed
		e := newCounter(0)
		l := newTestLearner(t, e, nil, c)
		if _, err := l.GenerateTrajectory(); err != nil {
			t.Fatalf("generatetrajectory: %v", err)
		}
		return e.actions
	}

	a, b := actions(1), actions(1)
	if !floats.Equal(a, b) {
		t.Fatalf("same seed took different actions:\n%v\n%v", a, b)
	}
	if other := actions(987654321); floats.Equal(a, other) {
		t.Errorf("seeds 1 and 987654321 took the same actions %v", a)
	}
}

func TestGenerateBatch(t *testing.T) {
	c := smallConfig()
	l := newTestLearner(t, newCounter(0), nil, c)

	batch, err := l.GenerateBatch()
	if err != nil {
		t.Fatalf("generatebatch: %v", err)
	}
	h, b := c.StepsPerTrajectory, c.TrajectoriesPerBatch
	if r, _ := batch.States.Dims(); r != b*h || len(batch.Returns) != b*h {
		t.Fatalf("want %d states and returns, have %d and %d", b*h, r,
			len(batch.Returns))
	}
	if len(batch.Rewards) != b*(h+1) {
		t.Errorf("want %d rewards, have %d", b*(h+1), len(batch.Rewards))
	}
	for i := 0; i < b*h; i++ {
		if s := batch.States.At(i, 0); s != float64(i%h) {
			t.Errorf("state %d: want %v, have %v", i, i%h, s)
		}
	}

	e := newCounter(0)
	e.fail = true
	l = newTestLearner(t, e, nil, c)
	if _, err := l.GenerateBatch(); err == nil {
		t.Errorf("expected environment error to propagate")
	}
}

func TestStepConstantReward(t *testing.T) {
	c := smallConfig()
	c.Iterations = 1
	l := newTestLearner(t, newCounter(0), nil, c)
	initialBest := l.BestPolicy()

	it, err := l.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if it.MeanReward != 1 || l.BestMeanReward() != 1 {
		t.Errorf("want mean reward 1, have %v (best %v)", it.MeanReward,
			l.BestMeanReward())
	}
	if it.Decision != Improved {
		t.Errorf("want improved, have %v", it.Decision)
	}
	if l.BestPolicy() == l.Policy() || l.BestPolicy() == initialBest {
		t.Errorf("best policy should be a new, distinct snapshot")
	}
	if _, err := initialBest.Probabilities([]float64{0}); !errors.Is(err, policy.ErrClosed) {
		t.Errorf("replaced snapshot should be closed, have %v", err)
	}
	if _, err := l.BestPolicy().Probabilities([]float64{0}); err != nil {
		t.Errorf("current snapshot: %v", err)
	}
	if !floats.Equal(l.MeanRewards(), []float64{1}) {
		t.Errorf("unexpected history %v", l.MeanRewards())
	}
	if want := c.EntropyCoefficient * c.EntropyDecay; math.Abs(l.EntropyCoefficient()-want) > 1e-15 {
		t.Errorf("entropy coefficient not decayed: %v", l.EntropyCoefficient())
	}
	for _, v := range []float64{it.Losses.Actor, it.Losses.Critic,
		it.Losses.Entropy, it.Losses.Total} {
		if math.IsNaN(v) {
			t.Errorf("NaN loss: %+v", it.Losses)
		}
	}

	if err := l.Train(context.Background()); err != nil {
		t.Fatalf("train: %v", err)
	}
	if l.Completed() != 1 {
		t.Errorf("train should not exceed configured iterations")
	}
}

func TestTrainCancelled(t *testing.T) {
	l := newTestLearner(t, newCounter(0), nil, smallConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Train(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, have %v", err)
	}
	if l.Completed() != 0 {
		t.Errorf("no iterations should run")
	}
}

func TestStepReverts(t *testing.T) {
	c := smallConfig()
	l := newTestLearner(t, newCounter(0), nil, c)
	if _, err := l.Step(); err != nil {
		t.Fatal(err)
	}

	// Force the next batch to look much worse than the best
	l.tracker.best = 100
	want := l.BestPolicy().Weights()
	it, err := l.Step()
	if err != nil {
		t.Fatal(err)
	}
	if it.Decision != Reverted {
		t.Fatalf("want reverted, have %v", it.Decision)
	}

	// The snapshot is untouched by the optimizer after reverting
	got := l.BestPolicy().Weights()
	for i := range want {
		if !floats.Equal(want[i], got[i]) {
			t.Fatalf("best policy modified after reversion")
		}
	}
}

func TestOptimizerReducesCriticLoss(t *testing.T) {
	c := smallConfig()
	c.Epochs = 200
	c.LearningRate = 1e-2
	c.EntropyCoefficient = 0
	l := newTestLearner(t, newCounter(0), nil, c)

	batch, err := l.GenerateBatch()
	if err != nil {
		t.Fatal(err)
	}
	oldProbs, _, err := l.Policy().Forward(batch.States)
	if err != nil {
		t.Fatal(err)
	}
	losses, err := l.opt.optimize(l.Policy(), batch.States,
		NormalizeReturns(batch.Returns), oldProbs, 0)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if first, last := losses[0].Critic, losses[len(losses)-1].Critic; last >= first {
		t.Errorf("critic loss did not decrease: %v -> %v", first, last)
	}
}

// objective computes the epoch losses of the clipped surrogate
// objective directly from the model's outputs before the update
func objective(probs, oldProbs *mat.Dense, values *mat.VecDense,
	returns []float64, c Config) Losses {
	rows, cols := probs.Dims()
	var actor, critic, entropy float64
	for i := 0; i < rows; i++ {
		adv := returns[i] - values.AtVec(i)
		critic += adv * adv
		for j := 0; j < cols; j++ {
			logP := math.Log(probs.At(i, j) + probTol)
			ratio := math.Exp(logP - math.Log(oldProbs.At(i, j)+probTol))
			clipped := math.Max(1-c.ClippingParam,
				math.Min(1+c.ClippingParam, ratio))
			actor += math.Min(clipped*adv, ratio*adv)
			entropy += probs.At(i, j) * logP
		}
	}

	n := float64(rows * cols)
	l := Losses{
		Actor:   -actor / n,
		Critic:  critic / float64(rows),
		Entropy: entropy / n,
	}
	l.Total = l.Actor + c.CriticCoefficient*l.Critic +
		c.EntropyCoefficient*l.Entropy
	return l
}

func TestOptimizerLossTerms(t *testing.T) {
	c := smallConfig()
	c.Epochs = 1
	c.CriticCoefficient = 0.5
	c.EntropyCoefficient = 0.05

	// skewed halves and doubles the old probabilities of alternating
	// actions so that every ratio falls outside the clipping range
	skewed := func(j int) float64 {
		if j%2 == 0 {
			return 0.5
		}
		return 2
	}
	tests := map[string]struct {
		// scale multiplies the old probability of action j
		scale   func(j int) float64
		clipped bool
	}{
		"unit ratio":    {func(int) float64 { return 1 }, false},
		"clipped ratio": {skewed, true},
	}

	for name, test := range tests {
		l := newTestLearner(t, newCounter(0), nil, c)
		batch, err := l.GenerateBatch()
		if err != nil {
			t.Fatal(err)
		}
		returns := NormalizeReturns(batch.Returns)
		probs, values, err := l.Policy().Forward(batch.States)
		if err != nil {
			t.Fatal(err)
		}

		oldProbs := mat.DenseCopyOf(probs)
		oldProbs.Apply(func(_, j int, v float64) float64 {
			return v * test.scale(j)
		}, oldProbs)

		want := objective(probs, oldProbs, values, returns, c)
		losses, err := l.opt.optimize(l.Policy(), batch.States, returns,
			oldProbs, c.EntropyCoefficient)
		if err != nil {
			t.Fatalf("%v: optimize: %v", name, err)
		}
		if len(losses) != 1 {
			t.Fatalf("%v: want 1 epoch of losses, have %d", name, len(losses))
		}
		got := losses[0]

		const tol = 1e-9
		for _, term := range []struct {
			name      string
			got, want float64
		}{
			{"actor", got.Actor, want.Actor},
			{"critic", got.Critic, want.Critic},
			{"entropy", got.Entropy, want.Entropy},
			{"total", got.Total, want.Total},
		} {
			if math.Abs(term.got-term.want) > tol {
				t.Errorf("%v: %v loss: want %v, have %v", name, term.name,
					term.want, term.got)
			}
		}

		noClip := c
		noClip.ClippingParam = math.Inf(1)
		unclipped := objective(probs, oldProbs, values, returns, noClip).Actor
		if test.clipped && math.Abs(got.Actor-unclipped) < 1e-6 {
			t.Errorf("%v: clipping did not change the actor loss", name)
		}
		if test.clipped {
			continue
		}

		advantages := make([]float64, len(returns))
		for i := range advantages {
			advantages[i] = returns[i] - values.AtVec(i)
		}
		if want := -stat.Mean(advantages, nil); math.Abs(got.Actor-want) > tol {
			t.Errorf("%v: with unit ratio the actor loss should be the "+
				"negative mean advantage %v, have %v", name, want, got.Actor)
		}
	}
}
