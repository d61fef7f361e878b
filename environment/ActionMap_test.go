package environment

import (
	"bytes"
	"encoding/gob"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

func TestGridActionMap(t *testing.T) {
	bounds := []r1.Interval{{Min: -1, Max: 1}, {Min: 0, Max: 2}}
	m, err := NewGridActionMap(bounds, 3)
	if err != nil {
		t.Fatalf("newgridactionmap: %v", err)
	}
	if m.Len() != 9 || m.Dim() != 2 {
		t.Fatalf("want 9 actions of dim 2, have %d of dim %d", m.Len(),
			m.Dim())
	}

	tests := []struct {
		index int
		want  []float64
	}{
		{0, []float64{-1, 0}},
		{1, []float64{-1, 1}},
		{3, []float64{0, 0}},
		{8, []float64{1, 2}},
	}
	for _, test := range tests {
		got, err := m.At(test.index)
		if err != nil {
			t.Fatalf("at(%d): %v", test.index, err)
		}
		if !mat.Equal(got, mat.NewVecDense(2, test.want)) {
			t.Errorf("at(%d): want(%v) have(%v)", test.index, test.want,
				got.RawVector().Data)
		}
	}

	if _, err := m.At(9); err == nil {
		t.Errorf("expected error for out of range index")
	}
}

func TestActionMapImmutable(t *testing.T) {
	source := [][]float64{{1, 2}, {3, 4}}
	m, err := NewActionMap(source)
	if err != nil {
		t.Fatalf("newactionmap: %v", err)
	}

	source[0][0] = 100
	v, _ := m.At(0)
	v.SetVec(1, 100)

	again, _ := m.At(0)
	if again.AtVec(0) != 1 || again.AtVec(1) != 2 {
		t.Errorf("action map was mutated: %v", again.RawVector().Data)
	}
}

func TestActionMapErrors(t *testing.T) {
	if _, err := NewActionMap(nil); err == nil {
		t.Errorf("expected error for empty action map")
	}
	if _, err := NewActionMap([][]float64{{1}, {1, 2}}); err == nil {
		t.Errorf("expected error for ragged actions")
	}
	if _, err := NewGridActionMap([]r1.Interval{{Min: 0, Max: 1}}, 1); err == nil {
		t.Errorf("expected error for a single level")
	}
}

func TestNearest(t *testing.T) {
	m, _ := NewActionMap([][]float64{{0, 0}, {1, 1}, {-1, 1}})
	tests := []struct {
		v    []float64
		want int
	}{
		{[]float64{0.1, -0.2}, 0},
		{[]float64{0.9, 1.3}, 1},
		{[]float64{-2, 2}, 2},
	}
	for _, test := range tests {
		got, err := m.Nearest(test.v)
		if err != nil {
			t.Fatalf("nearest: %v", err)
		}
		if got != test.want {
			t.Errorf("nearest(%v): want(%d) have(%d)", test.v, test.want, got)
		}
	}
	if _, err := m.Nearest([]float64{1}); err == nil {
		t.Errorf("expected error for wrong dimension")
	}
}

func TestActionMapGob(t *testing.T) {
	m, _ := NewActionMap([][]float64{{0.5}, {-0.5}})
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded ActionMap
	if err := gob.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Len() != 2 {
		t.Fatalf("want 2 actions, have %d", decoded.Len())
	}
	v, _ := decoded.At(1)
	if v.AtVec(0) != -0.5 {
		t.Errorf("want(-0.5) have(%v)", v.AtVec(0))
	}
}

func TestUniformStarter(t *testing.T) {
	bounds := []r1.Interval{{Min: -1, Max: 1}, {Min: 2, Max: 3}}
	s, err := NewUniformStarter(bounds, 1)
	if err != nil {
		t.Fatalf("newuniformstarter: %v", err)
	}
	for i := 0; i < 100; i++ {
		state := s.Start()
		for j, b := range bounds {
			if v := state.AtVec(j); v < b.Min || v > b.Max {
				t.Fatalf("sample %v outside of %v", v, b)
			}
		}
	}

	if _, err := NewUniformStarter([]r1.Interval{{Min: 1, Max: 0}}, 0); err == nil {
		t.Errorf("expected error for empty interval")
	}
}
