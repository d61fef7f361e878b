// Package bc implements behavior cloning: supervised pretraining of
// an actor-critic policy's actor on expert demonstrations.
package bc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samuelfneumann/armppo/agent/policy"
	"github.com/samuelfneumann/armppo/network"
	"github.com/samuelfneumann/armppo/solver"
	"github.com/samuelfneumann/armppo/utils/op"
	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Config implements a configuration of the behavior cloning Learner
type Config struct {
	Epochs       int         `json:"epochs" yaml:"epochs" mapstructure:"epochs"`
	BatchSize    int         `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
	LearningRate float64     `json:"learning_rate" yaml:"learning_rate" mapstructure:"learning_rate"`
	Solver       solver.Type `json:"solver" yaml:"solver" mapstructure:"solver"`
	Seed         uint64      `json:"seed" yaml:"seed" mapstructure:"seed"`

	Logger *slog.Logger `json:"-" yaml:"-" mapstructure:"-"`
}

// DefaultConfig returns the default behavior cloning configuration
func DefaultConfig() Config {
	return Config{
		Epochs:       50,
		BatchSize:    128,
		LearningRate: 3e-4,
		Solver:       solver.Adam,
	}
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if c.Epochs < 1 {
		return fmt.Errorf("validate: epochs must be at least 1, have %v",
			c.Epochs)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be at least 1, have %v",
			c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("validate: learning rate must be positive, have %v",
			c.LearningRate)
	}
	switch c.Solver {
	case solver.Adam, solver.RMSProp, solver.Vanilla:
	default:
		return fmt.Errorf("validate: unknown solver %q", c.Solver)
	}
	return nil
}

// Learner trains the actor of an ActorCritic to imitate demonstrated
// actions by minimizing the cross-entropy between the actor's action
// distribution and the expert's action indices
type Learner struct {
	config Config
	model  *policy.ActorCritic

	actor   network.NeuralNet
	vm      G.VM
	solver  G.Solver
	labels  *G.Node
	lossVal G.Value

	rng    *rand.Rand
	logger *slog.Logger
}

// New returns a new behavior cloning Learner for model
func New(model *policy.ActorCritic, c Config) (*Learner, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	s, err := solver.New(c.Solver, c.LearningRate)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	actor, err := model.Actor().CloneWithBatch(c.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	g := actor.Graph()

	labels := G.NewMatrix(g, tensor.Float64,
		G.WithShape(c.BatchSize, actor.Outputs()), G.WithName("labels"),
		G.WithInit(G.Zeroes()))
	logProbs := op.LogSoftmax(actor.Prediction())
	loss := G.Must(G.Sum(G.Must(G.HadamardProd(labels, logProbs)), 1))
	loss = G.Must(G.Neg(G.Must(G.Mean(loss))))

	l := &Learner{
		config: c,
		model:  model,
		actor:  actor,
		solver: s,
		labels: labels,
		rng:    rand.New(rand.NewSource(c.Seed)),
	}
	G.Read(loss, &l.lossVal)

	if _, err := G.Grad(loss, actor.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	l.vm = G.NewTapeMachine(g, G.BindDualValues(actor.Learnables()...))

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	l.logger = logger.With("component", "bc")

	return l, nil
}

// Train fits the actor to the demonstrations and copies the trained
// weights back into the model. It returns the mean loss of each epoch.
// Each epoch visits the demonstrations in a new random order, and the
// final incomplete mini-batch of each epoch is dropped.
func (l *Learner) Train(ctx context.Context, d Demonstrations) ([]float64,
	error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	if len(d.States[0]) != l.actor.Features() {
		return nil, fmt.Errorf("train: states have %d features, actor "+
			"expects %d", len(d.States[0]), l.actor.Features())
	}
	n := d.Len()
	batch := l.config.BatchSize
	if n < batch {
		return nil, fmt.Errorf("train: need at least %d demonstrations, "+
			"have %d", batch, n)
	}

	indices, err := d.Labels(l.model.ActionMap())
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	if err := l.actor.Set(l.model.Actor()); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	features := l.actor.Features()
	numActions := l.actor.Outputs()
	losses := make([]float64, 0, l.config.Epochs)
	for epoch := 0; epoch < l.config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return losses, fmt.Errorf("train: %w", err)
		}

		order := l.rng.Perm(n)
		var total float64
		batches := n / batch
		for b := 0; b < batches; b++ {
			states := make([]float64, 0, batch*features)
			labels := make([]float64, batch*numActions)
			for i, j := range order[b*batch : (b+1)*batch] {
				states = append(states, d.States[j]...)
				labels[i*numActions+indices[j]] = 1
			}

			loss, err := l.step(states, labels)
			if err != nil {
				return losses, fmt.Errorf("train: epoch %d: %w", epoch, err)
			}
			total += loss
		}

		losses = append(losses, total/float64(batches))
		l.logger.Debug("epoch", "epoch", epoch, "loss", losses[epoch])
	}

	if err := l.model.Actor().Set(l.actor); err != nil {
		return losses, fmt.Errorf("train: %w", err)
	}
	l.logger.Info("behavior cloning finished", "epochs", l.config.Epochs,
		"loss", losses[len(losses)-1])
	return losses, nil
}

// step takes a single gradient step on a mini-batch and returns the
// loss before the step
func (l *Learner) step(states, labels []float64) (float64, error) {
	if err := l.actor.SetInput(states); err != nil {
		return 0, err
	}
	labelTensor := tensor.New(tensor.WithShape(l.labels.Shape()...),
		tensor.WithBacking(labels))
	if err := G.Let(l.labels, labelTensor); err != nil {
		return 0, err
	}

	defer l.vm.Reset()
	if err := l.vm.RunAll(); err != nil {
		return 0, err
	}
	if err := l.solver.Step(l.actor.Model()); err != nil {
		return 0, err
	}

	switch v := l.lossVal.Data().(type) {
	case float64:
		return v, nil
	case []float64:
		return v[0], nil
	}
	return 0, fmt.Errorf("step: unexpected loss type %T", l.lossVal.Data())
}
