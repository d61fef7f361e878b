package ppo

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/armppo/agent/policy"
	"github.com/samuelfneumann/armppo/network"
	"github.com/samuelfneumann/armppo/solver"
	"github.com/samuelfneumann/armppo/utils/op"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// probTol is added to probabilities before taking logarithms
const probTol = 1e-10

// Losses are the loss terms of a single optimizer epoch
type Losses struct {
	Actor   float64
	Critic  float64
	Entropy float64
	Total   float64
}

// optimizer minimizes the clipped PPO objective over fixed-size
// batches. The actor and critic are trained as batch-sized copies in
// their own computational graphs. The advantage is a constant input,
// so the gradient of the total loss splits into the gradient of
// actor + c_entropy·entropy for the actor parameters and of
// c_critic·critic for the critic parameters.
type optimizer struct {
	batchSize  int
	epochs     int
	criticCoef float64

	actor       network.NeuralNet
	actorVM     G.VM
	actorSolver G.Solver
	oldLogProbs *G.Node
	advantages  *G.Node
	entropyCoef *G.Node

	actorLossVal G.Value
	entropyVal   G.Value

	critic        network.NeuralNet
	criticVM      G.VM
	criticSolver  G.Solver
	returns       *G.Node
	criticLossVal G.Value
}

// newOptimizer builds the training graphs for batches of batchSize
// states from the networks of model
func newOptimizer(model *policy.ActorCritic, c Config) (*optimizer, error) {
	batch := c.BatchSize()
	o := &optimizer{
		batchSize:  batch,
		epochs:     c.Epochs,
		criticCoef: c.CriticCoefficient,
	}

	actorSolver, err := solver.New(c.Solver, c.LearningRate)
	if err != nil {
		return nil, fmt.Errorf("newoptimizer: %w", err)
	}
	o.actorSolver = actorSolver
	o.criticSolver = actorSolver.Clone()

	if err := o.buildActor(model.Actor(), c.ClippingParam); err != nil {
		return nil, fmt.Errorf("newoptimizer: actor: %w", err)
	}
	if err := o.buildCritic(model.Critic(), c.CriticCoefficient); err != nil {
		return nil, fmt.Errorf("newoptimizer: critic: %w", err)
	}
	return o, nil
}

// buildActor builds the clipped surrogate and entropy losses
func (o *optimizer) buildActor(live network.NeuralNet, clip float64) error {
	actor, err := live.CloneWithBatch(o.batchSize)
	if err != nil {
		return err
	}
	g := actor.Graph()
	numActions := actor.Outputs()

	o.oldLogProbs = G.NewMatrix(g, tensor.Float64,
		G.WithShape(o.batchSize, numActions), G.WithName("old_log_probs"),
		G.WithInit(G.Zeroes()))
	o.advantages = G.NewMatrix(g, tensor.Float64,
		G.WithShape(o.batchSize, 1), G.WithName("advantages"),
		G.WithInit(G.Zeroes()))
	o.entropyCoef = G.NewScalar(g, tensor.Float64,
		G.WithName("entropy_coefficient"), G.WithValue(0.0))
	tol := G.NewScalar(g, tensor.Float64, G.WithName("prob_tol"),
		G.WithValue(probTol))

	probs := op.Softmax(actor.Prediction())
	logProbs := G.Must(G.Log(G.Must(G.Add(probs, tol))))

	ratio := G.Must(G.Exp(G.Must(G.Sub(logProbs, o.oldLogProbs))))
	clipped, err := op.Clip(ratio, 1-clip, 1+clip)
	if err != nil {
		return err
	}
	clippedSurr := G.Must(G.BroadcastHadamardProd(clipped, o.advantages, nil,
		[]byte{1}))
	surr := G.Must(G.BroadcastHadamardProd(ratio, o.advantages, nil,
		[]byte{1}))
	minSurr, err := op.Min(clippedSurr, surr)
	if err != nil {
		return err
	}
	actorLoss := G.Must(G.Neg(G.Must(G.Mean(minSurr))))
	G.Read(actorLoss, &o.actorLossVal)

	entropy := G.Must(G.Mean(G.Must(G.HadamardProd(probs, logProbs))))
	G.Read(entropy, &o.entropyVal)

	loss := G.Must(G.Add(actorLoss, G.Must(G.Mul(o.entropyCoef, entropy))))
	if _, err := G.Grad(loss, actor.Learnables()...); err != nil {
		return err
	}

	o.actor = actor
	o.actorVM = G.NewTapeMachine(g, G.BindDualValues(actor.Learnables()...))
	return nil
}

// buildCritic builds the value regression loss
func (o *optimizer) buildCritic(live network.NeuralNet, coef float64) error {
	critic, err := live.CloneWithBatch(o.batchSize)
	if err != nil {
		return err
	}
	g := critic.Graph()

	o.returns = G.NewMatrix(g, tensor.Float64, G.WithShape(o.batchSize, 1),
		G.WithName("returns"), G.WithInit(G.Zeroes()))
	coefNode := G.NewScalar(g, tensor.Float64,
		G.WithName("critic_coefficient"), G.WithValue(coef))

	criticLoss := G.Must(G.Sub(critic.Prediction(), o.returns))
	criticLoss = G.Must(G.Mean(G.Must(G.Square(criticLoss))))
	G.Read(criticLoss, &o.criticLossVal)

	loss := G.Must(G.Mul(coefNode, criticLoss))
	if _, err := G.Grad(loss, critic.Learnables()...); err != nil {
		return err
	}

	o.critic = critic
	o.criticVM = G.NewTapeMachine(g, G.BindDualValues(critic.Learnables()...))
	return nil
}

// optimize performs the configured number of gradient steps on model.
// returns must already be normalized, and oldProbs holds the action
// probabilities of the model on states before any update. The losses
// of each epoch are returned.
func (o *optimizer) optimize(model *policy.ActorCritic, states *mat.Dense,
	returns []float64, oldProbs *mat.Dense,
	entropyCoef float64) ([]Losses, error) {
	if rows, _ := states.Dims(); rows != o.batchSize || len(returns) != rows {
		return nil, fmt.Errorf("optimize: expected %d states and returns, "+
			"have %d and %d", o.batchSize, rows, len(returns))
	}

	if err := o.actor.Set(model.Actor()); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	if err := o.critic.Set(model.Critic()); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}

	input := mat.DenseCopyOf(states).RawMatrix().Data
	if err := o.actor.SetInput(input); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	if err := o.critic.SetInput(input); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}

	_, numActions := oldProbs.Dims()
	oldLogProbs := mat.DenseCopyOf(oldProbs).RawMatrix().Data
	for i, p := range oldLogProbs {
		oldLogProbs[i] = math.Log(p + probTol)
	}
	lets := []struct {
		node  *G.Node
		value G.Value
	}{
		{o.oldLogProbs, tensor.New(tensor.WithShape(o.batchSize, numActions),
			tensor.WithBacking(oldLogProbs))},
		{o.returns, tensor.New(tensor.WithShape(o.batchSize, 1),
			tensor.WithBacking(append([]float64(nil), returns...)))},
		{o.entropyCoef, G.NewF64(entropyCoef)},
	}
	for _, l := range lets {
		if err := G.Let(l.node, l.value); err != nil {
			return nil, fmt.Errorf("optimize: could not set %v: %w",
				l.node.Name(), err)
		}
	}

	advantages := make([]float64, o.batchSize)
	losses := make([]Losses, o.epochs)
	for epoch := 0; epoch < o.epochs; epoch++ {
		// The critic's forward pass gives the values used as the
		// advantage baseline, before this epoch's update
		if err := o.criticVM.RunAll(); err != nil {
			return nil, fmt.Errorf("optimize: critic: %w", err)
		}
		values := o.critic.Output().Data().([]float64)
		for i := range advantages {
			advantages[i] = returns[i] - values[i]
		}
		if err := o.criticSolver.Step(o.critic.Model()); err != nil {
			return nil, fmt.Errorf("optimize: critic step: %w", err)
		}
		criticLoss := scalar(o.criticLossVal)
		o.criticVM.Reset()

		advTensor := tensor.New(tensor.WithShape(o.batchSize, 1),
			tensor.WithBacking(append([]float64(nil), advantages...)))
		if err := G.Let(o.advantages, advTensor); err != nil {
			return nil, fmt.Errorf("optimize: %w", err)
		}
		if err := o.actorVM.RunAll(); err != nil {
			return nil, fmt.Errorf("optimize: actor: %w", err)
		}
		if err := o.actorSolver.Step(o.actor.Model()); err != nil {
			return nil, fmt.Errorf("optimize: actor step: %w", err)
		}
		actorLoss := scalar(o.actorLossVal)
		entropy := scalar(o.entropyVal)
		o.actorVM.Reset()

		losses[epoch] = Losses{
			Actor:   actorLoss,
			Critic:  criticLoss,
			Entropy: entropy,
			Total: actorLoss + o.criticCoef*criticLoss +
				entropyCoef*entropy,
		}
	}

	if err := model.Actor().Set(o.actor); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	if err := model.Critic().Set(o.critic); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	return losses, nil
}

// scalar returns the float64 held by a scalar Value
func scalar(v G.Value) float64 {
	switch data := v.Data().(type) {
	case float64:
		return data
	case []float64:
		return data[0]
	}
	return math.NaN()
}
