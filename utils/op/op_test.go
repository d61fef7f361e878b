package op

import (
	"math"
	"testing"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// run evaluates out after binding data to a (rows x cols) input node
func run(t *testing.T, rows, cols int, data []float64,
	build func(*G.Node) *G.Node) []float64 {
	t.Helper()

	g := G.NewGraph()
	x := G.NewMatrix(g, tensor.Float64, G.WithShape(rows, cols),
		G.WithName("x"), G.WithInit(G.Zeroes()))
	out := build(x)

	var outVal G.Value
	G.Read(out, &outVal)

	vm := G.NewTapeMachine(g)
	defer vm.Close()

	if err := G.Let(x, tensor.New(tensor.WithBacking(data),
		tensor.WithShape(rows, cols))); err != nil {
		t.Fatalf("let: %v", err)
	}
	if err := vm.RunAll(); err != nil {
		t.Fatalf("run: %v", err)
	}

	result := outVal.Data().([]float64)
	return append([]float64(nil), result...)
}

func TestClip(t *testing.T) {
	data := []float64{0.5, 0.9, 1.0, 1.1, 1.3, 0.8}
	want := []float64{0.9, 0.9, 1.0, 1.1, 1.1, 0.9}

	got := run(t, 2, 3, data, func(x *G.Node) *G.Node {
		return G.Must(Clip(x, 0.9, 1.1))
	})
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("index %d: want(%v) have(%v)", i, want[i], got[i])
		}
	}
}

func TestMin(t *testing.T) {
	g := G.NewGraph()
	a := G.NewVector(g, tensor.Float64, G.WithShape(3), G.WithName("a"),
		G.WithValue(tensor.New(tensor.WithBacking([]float64{1, 5, 3}))))
	b := G.NewVector(g, tensor.Float64, G.WithShape(3), G.WithName("b"),
		G.WithValue(tensor.New(tensor.WithBacking([]float64{2, 4, 3}))))
	out := G.Must(Min(a, b))

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []float64{1, 4, 3}
	got := out.Value().Data().([]float64)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: want(%v) have(%v)", i, want[i], got[i])
		}
	}
}

func TestSoftmax(t *testing.T) {
	data := []float64{1, 2, 3, 1000, 1000, 1000}
	got := run(t, 2, 3, data, Softmax)

	for row := 0; row < 2; row++ {
		var sum float64
		for col := 0; col < 3; col++ {
			sum += got[row*3+col]
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %d: probabilities sum to %v", row, sum)
		}
	}

	denom := math.Exp(1) + math.Exp(2) + math.Exp(3)
	if want := math.Exp(3) / denom; math.Abs(got[2]-want) > 1e-9 {
		t.Errorf("want(%v) have(%v)", want, got[2])
	}
	for col := 3; col < 6; col++ {
		if math.Abs(got[col]-1.0/3.0) > 1e-9 {
			t.Errorf("large logits: want(1/3) have(%v)", got[col])
		}
	}
}
