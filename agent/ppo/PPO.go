// Package ppo implements Proximal Policy Optimization with a clipped
// surrogate objective for discrete actions, together with a guard that
// reverts the policy to the best policy seen so far when performance
// drops.
//
// Each iteration collects a fixed-size batch of fixed-horizon
// trajectories, tracks the batch's mean reward (possibly reverting the
// policy), optimizes the policy for a number of epochs on the batch,
// and finally decays the entropy coefficient and reversion threshold.
package ppo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samuelfneumann/armppo/agent/policy"
	env "github.com/samuelfneumann/armppo/environment"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Trajectory is a single rollout of H+1 environmental steps. The
// terminal state is dropped, so States has H rows, Rewards has H+1
// entries and Returns has H entries.
type Trajectory struct {
	States  *mat.Dense
	Rewards []float64
	Returns []float64
}

// Batch is the concatenation of a number of trajectories, in order
type Batch struct {
	States  *mat.Dense
	Rewards []float64
	Returns []float64
}

// Iteration records the outcome of one training iteration
type Iteration struct {
	Index              int
	MeanReward         float64
	BestMeanReward     float64
	Decision           Decision
	EntropyCoefficient float64
	ReversionThreshold float64

	// Losses of the final optimizer epoch
	Losses Losses

	CollectTime  time.Duration
	OptimizeTime time.Duration
}

// Learner trains an actor-critic model on an environment with PPO
type Learner struct {
	config  Config
	env     env.Environment
	starter env.Starter

	policy *policy.ActorCritic
	best   *policy.ActorCritic

	opt       *optimizer
	tracker   *Tracker
	scheduler *Scheduler
	iteration int

	logger *slog.Logger
}

// New returns a new Learner that trains model on e. If starter is not
// nil, each trajectory starts from a state sampled from starter
// instead of the environment's configured initial state. The model is
// modified in place during training, and its action sampler is
// reseeded with c.Seed.
func New(e env.Environment, model *policy.ActorCritic, starter env.Starter,
	c Config) (*Learner, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	if features := e.ObservationSpec().Len(); features != model.Features() {
		return nil, fmt.Errorf("new: environment has %d state features, "+
			"model expects %d", features, model.Features())
	}
	if model.ActionMap().Dim() != e.ActionSpec().Len() {
		return nil, fmt.Errorf("new: actions have dimension %d, "+
			"environment expects %d", model.ActionMap().Dim(),
			e.ActionSpec().Len())
	}

	model.Reseed(c.Seed)
	best, err := model.Clone()
	if err != nil {
		return nil, fmt.Errorf("new: could not snapshot policy: %w", err)
	}
	opt, err := newOptimizer(model, c)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	return &Learner{
		config:    c,
		env:       e,
		starter:   starter,
		policy:    model,
		best:      best,
		opt:       opt,
		tracker:   NewTracker(),
		scheduler: NewScheduler(c),
		logger:    c.logger().With("component", "ppo"),
	}, nil
}

// GenerateTrajectory rolls out the live policy for H+1 steps and
// returns the trajectory. The environment's configured initial state
// is the same before and after the call.
func (l *Learner) GenerateTrajectory() (traj Trajectory, err error) {
	h := l.config.StepsPerTrajectory

	init := l.env.Init()
	defer func() {
		if restoreErr := l.restore(init); restoreErr != nil && err == nil {
			traj, err = Trajectory{}, fmt.Errorf("generatetrajectory: %w",
				restoreErr)
		}
	}()

	if l.starter != nil {
		if err := l.env.SetInit(l.starter.Start()); err != nil {
			return Trajectory{}, fmt.Errorf("generatetrajectory: could not "+
				"set random initial state: %w", err)
		}
	}
	step, err := l.env.Reset()
	if err != nil {
		return Trajectory{}, fmt.Errorf("generatetrajectory: %w", err)
	}

	features := l.policy.Features()
	states := mat.NewDense(h+1, features, nil)
	rewards := make([]float64, 0, h+1)
	state := step.Observation
	for t := 0; t <= h; t++ {
		states.SetRow(t, state.RawVector().Data)

		_, action, err := l.policy.SampleAction(states.RawRowView(t))
		if err != nil {
			return Trajectory{}, fmt.Errorf("generatetrajectory: %w", err)
		}
		step, _, err = l.env.Step(action)
		if err != nil {
			return Trajectory{}, fmt.Errorf("generatetrajectory: %w", err)
		}

		rewards = append(rewards, step.Reward)
		state = step.Observation
	}

	return Trajectory{
		States:  states.Slice(0, h, 0, features).(*mat.Dense),
		Rewards: rewards,
		Returns: DiscountedReturns(rewards, h, l.config.Discount),
	}, nil
}

// restore sets the environment's initial state back to init and resets
// it
func (l *Learner) restore(init *mat.VecDense) error {
	if err := l.env.SetInit(init); err != nil {
		return fmt.Errorf("could not restore initial state: %w", err)
	}
	if _, err := l.env.Reset(); err != nil {
		return fmt.Errorf("could not reset after restoring initial "+
			"state: %w", err)
	}
	return nil
}

// GenerateBatch generates trajectories sequentially and concatenates
// them in order
func (l *Learner) GenerateBatch() (Batch, error) {
	h := l.config.StepsPerTrajectory
	n := l.config.TrajectoriesPerBatch
	features := l.policy.Features()

	batch := Batch{
		States:  mat.NewDense(n*h, features, nil),
		Rewards: make([]float64, 0, n*(h+1)),
		Returns: make([]float64, 0, n*h),
	}
	for i := 0; i < n; i++ {
		traj, err := l.GenerateTrajectory()
		if err != nil {
			return Batch{}, fmt.Errorf("generatebatch: trajectory %d: %w", i,
				err)
		}

		rows := batch.States.Slice(i*h, (i+1)*h, 0, features).(*mat.Dense)
		rows.Copy(traj.States)
		batch.Rewards = append(batch.Rewards, traj.Rewards...)
		batch.Returns = append(batch.Returns, traj.Returns...)
	}
	return batch, nil
}

// Step runs a single training iteration: collect a batch, track its
// mean reward and possibly revert the policy, optimize the policy on
// the batch, then decay hyperparameters.
func (l *Learner) Step() (Iteration, error) {
	it := Iteration{
		Index:              l.iteration,
		EntropyCoefficient: l.scheduler.EntropyCoefficient(),
		ReversionThreshold: l.scheduler.ReversionThreshold(),
	}

	start := time.Now()
	batch, err := l.GenerateBatch()
	if err != nil {
		return Iteration{}, fmt.Errorf("step: %w", err)
	}
	it.CollectTime = time.Since(start)

	it.MeanReward = stat.Mean(batch.Rewards, nil)
	it.Decision = l.tracker.Observe(it.MeanReward, it.ReversionThreshold)
	it.BestMeanReward = l.tracker.Best()
	switch it.Decision {
	case Improved:
		best, err := l.policy.Clone()
		if err != nil {
			return Iteration{}, fmt.Errorf("step: could not snapshot "+
				"policy: %w", err)
		}
		if err := l.best.Close(); err != nil {
			l.logger.Warn("could not release previous best policy",
				"error", err)
		}
		l.best = best
	case Reverted:
		l.logger.Info("reverting policy", "iteration", it.Index,
			"mean_reward", it.MeanReward, "best_mean_reward",
			it.BestMeanReward)
		if err := l.policy.Set(l.best); err != nil {
			return Iteration{}, fmt.Errorf("step: could not revert "+
				"policy: %w", err)
		}
	}

	start = time.Now()
	oldProbs, _, err := l.policy.Forward(batch.States)
	if err != nil {
		return Iteration{}, fmt.Errorf("step: %w", err)
	}
	losses, err := l.opt.optimize(l.policy, batch.States,
		NormalizeReturns(batch.Returns), oldProbs, it.EntropyCoefficient)
	if err != nil {
		return Iteration{}, fmt.Errorf("step: %w", err)
	}
	it.OptimizeTime = time.Since(start)
	it.Losses = losses[len(losses)-1]
	for epoch, loss := range losses {
		l.logger.Debug("epoch", "iteration", it.Index, "epoch", epoch,
			"actor_loss", loss.Actor, "critic_loss", loss.Critic,
			"entropy", loss.Entropy, "loss", loss.Total)
	}

	l.scheduler.Step()
	l.iteration++

	l.logger.Info("iteration", "iteration", it.Index, "mean_reward",
		it.MeanReward, "best_mean_reward", it.BestMeanReward, "reverted",
		it.Decision == Reverted)
	return it, nil
}

// Train runs the remaining configured iterations, checking ctx between
// iterations
func (l *Learner) Train(ctx context.Context) error {
	for l.iteration < l.config.Iterations {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("train: %w", err)
		}
		if _, err := l.Step(); err != nil {
			return fmt.Errorf("train: %w", err)
		}
	}
	return nil
}

// Policy returns the live policy
func (l *Learner) Policy() *policy.ActorCritic {
	return l.policy
}

// BestPolicy returns the snapshot of the policy that achieved the best
// mean reward
func (l *Learner) BestPolicy() *policy.ActorCritic {
	return l.best
}

// MeanRewards returns the mean reward of each completed iteration
func (l *Learner) MeanRewards() []float64 {
	return l.tracker.History()
}

// BestMeanReward returns the best mean reward seen so far
func (l *Learner) BestMeanReward() float64 {
	return l.tracker.Best()
}

// EntropyCoefficient returns the current entropy coefficient
func (l *Learner) EntropyCoefficient() float64 {
	return l.scheduler.EntropyCoefficient()
}

// ReversionThreshold returns the current reversion threshold
func (l *Learner) ReversionThreshold() float64 {
	return l.scheduler.ReversionThreshold()
}

// Completed returns the number of completed iterations
func (l *Learner) Completed() int {
	return l.iteration
}

// Config returns the learner's configuration
func (l *Learner) Config() Config {
	return l.config
}
