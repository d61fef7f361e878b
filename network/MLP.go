package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// mlp implements a multi-layered perceptron with a single output
// layer of numOutputs units.
type mlp struct {
	g          *G.ExprGraph
	layers     []Layer
	input      *G.Node
	numOutputs int
	numInputs  int
	batchSize  int
	prefix     string

	// Data needed for gobbing. These do not include the final linear
	// output layer.
	hiddenSizes []int
	biases      []bool
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMLP creates and returns a new multi-layered perceptron. The graph
// parameter g is populated with the MLP.
//
// The MLP has number of layers equal to len(hiddenSizes) + 1. A final
// linear layer with a bias unit and no activation is always added so
// that the network produces outputs values per input row. The function
// works such that for index i, hiddenSizes[i] is the number of nodes
// in hidden layer i; biases[i] is true if the hidden layer will
// contain a bias unit and false otherwise; and activations[i] is the
// activation function for hidden layer i.
//
// All nodes of the network are named with the given prefix, so that
// two networks built with different prefixes may share a graph.
func NewMLP(features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation, prefix string) (NeuralNet, error) {
	if len(hiddenSizes) != len(activations) {
		msg := "newmlp: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "newmlp: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}
	for i, size := range hiddenSizes {
		if size <= 0 {
			return nil, fmt.Errorf("newmlp: hidden layer %d has illegal "+
				"size %d", i, size)
		}
	}
	if features <= 0 || outputs <= 0 || batch <= 0 {
		return nil, fmt.Errorf("newmlp: features (%d), outputs (%d) and "+
			"batch (%d) must be positive", features, outputs, batch)
	}

	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName(prefix+"input"), G.WithInit(G.Zeroes()))

	hidden := append([]int(nil), hiddenSizes...)
	bias := append([]bool(nil), biases...)
	acts := append([]*Activation(nil), activations...)

	sizes := append(append([]int(nil), hidden...), outputs)
	layerBiases := append(append([]bool(nil), bias...), true)
	layerActs := append(append([]*Activation(nil), acts...), Identity())

	network := mlp{
		g:           g,
		layers:      newFCLayers(g, sizes, layerBiases, layerActs, init, features, prefix),
		input:       input,
		numOutputs:  outputs,
		numInputs:   features,
		batchSize:   batch,
		prefix:      prefix,
		hiddenSizes: hidden,
		biases:      bias,
		activations: acts,
	}
	if _, err := network.fwd(input); err != nil {
		return nil, fmt.Errorf("newmlp: could not compute forward pass: %v",
			err)
	}

	return &network, nil
}

// Graph returns the computational graph of the mlp.
func (e *mlp) Graph() *G.ExprGraph {
	return e.g
}

// Clone clones an mlp into a new graph with the same batch size
func (e *mlp) Clone() (NeuralNet, error) {
	return e.CloneWithBatch(e.batchSize)
}

// CloneWithBatch clones an mlp into a new graph with a new input
// batch size. The clone shares no weight storage with e.
func (e *mlp) CloneWithBatch(batchSize int) (NeuralNet, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("clonewithbatch: illegal batch size %d",
			batchSize)
	}
	graph := G.NewGraph()

	input := G.NewMatrix(
		graph,
		tensor.Float64,
		G.WithShape(batchSize, e.numInputs),
		G.WithName(e.prefix+"input"),
		G.WithInit(G.Zeroes()),
	)

	l := make([]Layer, len(e.layers))
	for i := range e.layers {
		l[i] = e.layers[i].CloneTo(graph)
	}

	network := mlp{
		g:           graph,
		layers:      l,
		input:       input,
		numOutputs:  e.numOutputs,
		numInputs:   e.numInputs,
		batchSize:   batchSize,
		prefix:      e.prefix,
		hiddenSizes: e.hiddenSizes,
		biases:      e.biases,
		activations: e.activations,
	}
	if _, err := network.fwd(input); err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not clone: %v", err)
	}

	return &network, nil
}

// BatchSize returns the batch size of inputs to the network
func (e *mlp) BatchSize() int {
	return e.batchSize
}

// Features returns the number of features in a single input row
func (e *mlp) Features() int {
	return e.numInputs
}

// Outputs returns the number of outputs from the network
func (e *mlp) Outputs() int {
	return e.numOutputs
}

// SetInput sets the value of the input node before running the forward
// pass. The input is interpreted in row-major order.
func (e *mlp) SetInput(input []float64) error {
	if len(input) != e.numInputs*e.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", e.numInputs*e.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(e.input.Shape()...),
	)
	return G.Let(e.input, inputTensor)
}

// Set sets the weights of an mlp to be equal to the weights of another
// network with the same architecture. Weights are copied into the
// existing storage of dest, so any solver or VM bound to dest keeps
// working.
func (dest *mlp) Set(source NeuralNet) error {
	return dest.SetWeights(source.Weights())
}

// Weights returns a copy of the values of each learnable node, in the
// order of Learnables().
func (e *mlp) Weights() [][]float64 {
	nodes := e.Learnables()
	weights := make([][]float64, len(nodes))
	for i, node := range nodes {
		data := node.Value().Data().([]float64)
		weights[i] = append([]float64(nil), data...)
	}
	return weights
}

// SetWeights copies weights into the learnable nodes, which must have
// matching sizes.
func (e *mlp) SetWeights(weights [][]float64) error {
	nodes := e.Learnables()
	if len(weights) != len(nodes) {
		return fmt.Errorf("setweights: invalid number of weight tensors"+
			"\n\twant(%v)\n\thave(%v)", len(nodes), len(weights))
	}
	for i, node := range nodes {
		data := node.Value().Data().([]float64)
		if len(data) != len(weights[i]) {
			return fmt.Errorf("setweights: invalid size for weights %v "+
				"(%v)\n\twant(%v)\n\thave(%v)", i, node.Name(), len(data),
				len(weights[i]))
		}
		copy(data, weights[i])
	}
	return nil
}

// Learnables returns the learnable nodes in an mlp
func (e *mlp) Learnables() G.Nodes {
	if e.learnables == nil {
		e.learnables = e.computeLearnables()
	}
	return e.learnables
}

// computeLearnables computes all the learnables for the network
func (e *mlp) computeLearnables() G.Nodes {
	learnables := make([]*G.Node, 0, 2*len(e.layers))

	for i := range e.layers {
		learnables = append(learnables, e.layers[i].Weights())
		if bias := e.layers[i].Bias(); bias != nil {
			learnables = append(learnables, bias)
		}
	}
	return G.Nodes(learnables)
}

// Model returns the learnables nodes with their gradients.
func (e *mlp) Model() []G.ValueGrad {
	if e.model == nil {
		e.model = G.NodesToValueGrads(e.Learnables())
	}
	return e.model
}

// fwd performs the forward pass of the mlp on the input node
func (e *mlp) fwd(input *G.Node) (*G.Node, error) {
	if features := input.Shape()[len(input.Shape())-1]; features != e.numInputs {
		return nil, fmt.Errorf("fwd: invalid shape for input to neural net:"+
			" \n\twant(%v) \n\thave(%v)", e.numInputs, features)
	}

	pred := input
	var err error
	for i, l := range e.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	e.prediction = pred
	G.Read(e.prediction, &e.predVal)

	return pred, nil
}

// Output returns the output of the mlp after the graph has been run
func (e *mlp) Output() G.Value {
	return e.predVal
}

// Prediction returns the node of the computational graph that stores
// the output of the mlp
func (e *mlp) Prediction() *G.Node {
	return e.prediction
}

// GobEncode implements the gob.GobEncoder interface
func (e *mlp) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	fields := []struct {
		name  string
		value interface{}
	}{
		{"number of inputs", e.numInputs},
		{"number of outputs", e.numOutputs},
		{"batch size", e.batchSize},
		{"prefix", e.prefix},
		{"hidden sizes", e.hiddenSizes},
		{"biases", e.biases},
		{"activations", e.activations},
		{"weights", e.Weights()},
	}
	for _, field := range fields {
		if err := enc.Encode(field.value); err != nil {
			return nil, fmt.Errorf("gobencode: could not encode %v: %v",
				field.name, err)
		}
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (e *mlp) GobDecode(in []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(in))

	var (
		numInputs, numOutputs, batchSize int
		prefix                           string
		hiddenSizes                      []int
		biases                           []bool
		activations                      []*Activation
		weights                          [][]float64
	)
	fields := []struct {
		name  string
		value interface{}
	}{
		{"number of inputs", &numInputs},
		{"number of outputs", &numOutputs},
		{"batch size", &batchSize},
		{"prefix", &prefix},
		{"hidden sizes", &hiddenSizes},
		{"biases", &biases},
		{"activations", &activations},
		{"weights", &weights},
	}
	for _, field := range fields {
		if err := dec.Decode(field.value); err != nil {
			return fmt.Errorf("gobdecode: could not decode %v: %v",
				field.name, err)
		}
	}

	net, err := NewMLP(numInputs, batchSize, numOutputs, G.NewGraph(),
		hiddenSizes, biases, G.Zeroes(), activations, prefix)
	if err != nil {
		return fmt.Errorf("gobdecode: could not construct new MLP: %v", err)
	}
	if err := net.SetWeights(weights); err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}

	*e = *net.(*mlp)
	return nil
}

// Decode decodes a network previously encoded with gob, for example
// through a NeuralNet's GobEncode method.
func Decode(data []byte) (NeuralNet, error) {
	net := &mlp{}
	if err := net.GobDecode(data); err != nil {
		return nil, err
	}
	return net, nil
}
