// Package policy implements the actor-critic policy-value model used
// by the PPO learner: a softmax policy over a finite action set and a
// state value function, each represented by its own MLP.
package policy

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"

	env "github.com/samuelfneumann/armppo/environment"
	"github.com/samuelfneumann/armppo/network"
	"github.com/samuelfneumann/armppo/utils/op"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

const (
	// Node name prefixes of the actor and critic networks
	ActorPrefix  = "actor"
	CriticPrefix = "critic"
)

// ErrClosed is returned when evaluating a model after Close
var ErrClosed = errors.New("model is closed")

// ActorCritic is a policy-value model. The actor maps a state to a
// probability distribution over the actions of an ActionMap, and the
// critic maps a state to a scalar value estimate. Actor and critic
// share no parameters.
//
// An ActorCritic is not safe for concurrent use.
type ActorCritic struct {
	actor    network.NeuralNet
	actorVM  G.VM
	probs    *G.Node
	probsVal G.Value

	critic   network.NeuralNet
	criticVM G.VM

	actionMap *env.ActionMap
	seed      uint64
	rng       rand.Source
	closed    bool
}

// New returns a new ActorCritic for states with features dimensions
// and numActions discrete actions, which are mapped to control vectors
// by actionMap. Both networks use the hidden activation act in each
// hidden layer and have weights initialized by init.
func New(features, numActions int, actionMap *env.ActionMap, actorHidden,
	criticHidden []int, act *network.Activation, init G.InitWFn,
	seed uint64) (*ActorCritic, error) {
	if len(actorHidden) == 0 || len(criticHidden) == 0 {
		return nil, fmt.Errorf("new: actor and critic need at least one " +
			"hidden layer")
	}
	if actionMap == nil {
		return nil, fmt.Errorf("new: nil action map")
	}
	if actionMap.Len() != numActions {
		return nil, fmt.Errorf("new: action map has %d actions, expected %d",
			actionMap.Len(), numActions)
	}
	if act == nil {
		act = network.ReLU()
	}

	actor, err := network.NewMLP(features, 1, numActions, G.NewGraph(),
		actorHidden, fill(len(actorHidden), true), init,
		repeat(act, len(actorHidden)), ActorPrefix)
	if err != nil {
		return nil, fmt.Errorf("new: could not create actor: %w", err)
	}

	critic, err := network.NewMLP(features, 1, 1, G.NewGraph(), criticHidden,
		fill(len(criticHidden), true), init, repeat(act, len(criticHidden)),
		CriticPrefix)
	if err != nil {
		return nil, fmt.Errorf("new: could not create critic: %w", err)
	}

	return newActorCritic(actor, critic, actionMap, seed), nil
}

// newActorCritic wraps batch-size 1 actor and critic networks
func newActorCritic(actor, critic network.NeuralNet, actionMap *env.ActionMap,
	seed uint64) *ActorCritic {
	a := &ActorCritic{
		actor:     actor,
		critic:    critic,
		actionMap: actionMap,
		seed:      seed,
		rng:       rand.NewSource(seed),
	}

	a.probs = op.Softmax(actor.Prediction())
	G.Read(a.probs, &a.probsVal)

	a.actorVM = G.NewTapeMachine(actor.Graph())
	a.criticVM = G.NewTapeMachine(critic.Graph())
	return a
}

// Actor returns the actor network, which outputs logits
func (a *ActorCritic) Actor() network.NeuralNet {
	return a.actor
}

// Critic returns the critic network
func (a *ActorCritic) Critic() network.NeuralNet {
	return a.critic
}

// ActionMap returns the map from action indices to control vectors
func (a *ActorCritic) ActionMap() *env.ActionMap {
	return a.actionMap
}

// Features returns the dimension of states
func (a *ActorCritic) Features() int {
	return a.actor.Features()
}

// NumActions returns the number of discrete actions
func (a *ActorCritic) NumActions() int {
	return a.actor.Outputs()
}

// Probabilities returns the action probabilities in state
func (a *ActorCritic) Probabilities(state []float64) ([]float64, error) {
	if a.closed {
		return nil, fmt.Errorf("probabilities: %w", ErrClosed)
	}
	if err := a.actor.SetInput(state); err != nil {
		return nil, fmt.Errorf("probabilities: %w", err)
	}
	defer a.actorVM.Reset()
	if err := a.actorVM.RunAll(); err != nil {
		return nil, fmt.Errorf("probabilities: %w", err)
	}

	return append([]float64(nil), a.probsVal.Data().([]float64)...), nil
}

// Value returns the critic's value estimate of state
func (a *ActorCritic) Value(state []float64) (float64, error) {
	if a.closed {
		return 0, fmt.Errorf("value: %w", ErrClosed)
	}
	if err := a.critic.SetInput(state); err != nil {
		return 0, fmt.Errorf("value: %w", err)
	}
	defer a.criticVM.Reset()
	if err := a.criticVM.RunAll(); err != nil {
		return 0, fmt.Errorf("value: %w", err)
	}

	return a.critic.Output().Data().([]float64)[0], nil
}

// Forward returns the action probabilities and value estimates of each
// row of states. Row i of the returned matrix holds the action
// probabilities of state i.
func (a *ActorCritic) Forward(states *mat.Dense) (*mat.Dense, *mat.VecDense,
	error) {
	rows, cols := states.Dims()
	if cols != a.Features() {
		return nil, nil, fmt.Errorf("forward: states have %d features, "+
			"expected %d", cols, a.Features())
	}

	probs := mat.NewDense(rows, a.NumActions(), nil)
	values := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		state := states.RawRowView(i)

		p, err := a.Probabilities(state)
		if err != nil {
			return nil, nil, fmt.Errorf("forward: %w", err)
		}
		probs.SetRow(i, p)

		v, err := a.Value(state)
		if err != nil {
			return nil, nil, fmt.Errorf("forward: %w", err)
		}
		values.SetVec(i, v)
	}
	return probs, values, nil
}

// SampleAction samples an action index from the actor's distribution
// in state and returns it together with its control vector.
func (a *ActorCritic) SampleAction(state []float64) (int, *mat.VecDense,
	error) {
	probs, err := a.Probabilities(state)
	if err != nil {
		return 0, nil, fmt.Errorf("sampleaction: %w", err)
	}

	index := int(distuv.NewCategorical(probs, a.rng).Rand())
	action, err := a.actionMap.At(index)
	if err != nil {
		return 0, nil, fmt.Errorf("sampleaction: %w", err)
	}
	return index, action, nil
}

// Greedy returns the most probable action in state and its control
// vector. Ties are broken by lowest index.
func (a *ActorCritic) Greedy(state []float64) (int, *mat.VecDense, error) {
	probs, err := a.Probabilities(state)
	if err != nil {
		return 0, nil, fmt.Errorf("greedy: %w", err)
	}

	index := 0
	for i := range probs {
		if probs[i] > probs[index] {
			index = i
		}
	}
	action, err := a.actionMap.At(index)
	if err != nil {
		return 0, nil, fmt.Errorf("greedy: %w", err)
	}
	return index, action, nil
}

// Reseed restarts the source that SampleAction draws from. Clones made
// afterwards use the new seed.
func (a *ActorCritic) Reseed(seed uint64) {
	a.seed = seed
	a.rng = rand.NewSource(seed)
}

// Clone returns a deep copy of the ActorCritic. The clone shares no
// mutable storage with a. Its random source is reseeded with a's seed.
func (a *ActorCritic) Clone() (*ActorCritic, error) {
	actor, err := a.actor.Clone()
	if err != nil {
		return nil, fmt.Errorf("clone: could not clone actor: %w", err)
	}
	critic, err := a.critic.Clone()
	if err != nil {
		return nil, fmt.Errorf("clone: could not clone critic: %w", err)
	}
	return newActorCritic(actor, critic, a.actionMap, a.seed), nil
}

// Set copies the parameters of source into a. Both models must have
// the same architecture.
func (a *ActorCritic) Set(source *ActorCritic) error {
	if err := a.actor.Set(source.actor); err != nil {
		return fmt.Errorf("set: actor: %w", err)
	}
	if err := a.critic.Set(source.critic); err != nil {
		return fmt.Errorf("set: critic: %w", err)
	}
	return nil
}

// Weights returns copies of the actor's parameters followed by copies
// of the critic's parameters
func (a *ActorCritic) Weights() [][]float64 {
	return append(a.actor.Weights(), a.critic.Weights()...)
}

// SetWeights copies weights, ordered as returned by Weights, into the
// model
func (a *ActorCritic) SetWeights(weights [][]float64) error {
	n := len(a.actor.Learnables())
	if len(weights) != n+len(a.critic.Learnables()) {
		return fmt.Errorf("setweights: invalid number of weight tensors "+
			"\n\twant(%v)\n\thave(%v)",
			n+len(a.critic.Learnables()), len(weights))
	}
	if err := a.actor.SetWeights(weights[:n]); err != nil {
		return fmt.Errorf("setweights: actor: %w", err)
	}
	if err := a.critic.SetWeights(weights[n:]); err != nil {
		return fmt.Errorf("setweights: critic: %w", err)
	}
	return nil
}

// Close releases the resources held by the model's VMs. The model
// cannot be evaluated afterwards. Closing twice is a no-op.
func (a *ActorCritic) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.actorVM.Close(); err != nil {
		return err
	}
	return a.criticVM.Close()
}

// GobEncode implements the gob.GobEncoder interface
func (a *ActorCritic) GobEncode() ([]byte, error) {
	actor, err := encodeNet(a.actor)
	if err != nil {
		return nil, fmt.Errorf("gobencode: actor: %w", err)
	}
	critic, err := encodeNet(a.critic)
	if err != nil {
		return nil, fmt.Errorf("gobencode: critic: %w", err)
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, v := range []interface{}{actor, critic, a.actionMap, a.seed} {
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("gobencode: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (a *ActorCritic) GobDecode(in []byte) error {
	var (
		actorData, criticData []byte
		actionMap             env.ActionMap
		seed                  uint64
	)
	dec := gob.NewDecoder(bytes.NewReader(in))
	for _, v := range []interface{}{&actorData, &criticData, &actionMap, &seed} {
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("gobdecode: %w", err)
		}
	}

	actor, err := network.Decode(actorData)
	if err != nil {
		return fmt.Errorf("gobdecode: actor: %w", err)
	}
	critic, err := network.Decode(criticData)
	if err != nil {
		return fmt.Errorf("gobdecode: critic: %w", err)
	}

	*a = *newActorCritic(actor, critic, &actionMap, seed)
	return nil
}

// Save gob encodes the model to the file at path
func (a *ActorCritic) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(a); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return f.Close()
}

// Load loads a model saved with Save
func Load(path string) (*ActorCritic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defer f.Close()

	a := &ActorCritic{}
	if err := gob.NewDecoder(f).Decode(a); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return a, nil
}

func encodeNet(net network.NeuralNet) ([]byte, error) {
	enc, ok := net.(gob.GobEncoder)
	if !ok {
		return nil, fmt.Errorf("network %T cannot be gob encoded", net)
	}
	return enc.GobEncode()
}

func fill(n int, v bool) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func repeat(act *network.Activation, n int) []*network.Activation {
	out := make([]*network.Activation, n)
	for i := range out {
		out[i] = act
	}
	return out
}
