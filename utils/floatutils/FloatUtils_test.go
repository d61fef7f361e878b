package floatutils

import (
	"math"
	"testing"
)

func TestClip(t *testing.T) {
	tests := []struct {
		value, min, max, want float64
	}{
		{0.5, 0, 1, 0.5},
		{-2, -1, 1, -1},
		{3, -1, 1, 1},
		{1, 1, 1, 1},
	}
	for _, test := range tests {
		if got := Clip(test.value, test.min, test.max); got != test.want {
			t.Errorf("Clip(%v, %v, %v): want(%v) have(%v)", test.value,
				test.min, test.max, test.want, got)
		}
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		value, want float64
	}{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{math.Pi, -math.Pi},
	}
	for _, test := range tests {
		got := Wrap(test.value, -math.Pi, math.Pi)
		if math.Abs(got-test.want) > 1e-12 {
			t.Errorf("Wrap(%v): want(%v) have(%v)", test.value, test.want,
				got)
		}
	}
}

func TestArgMax(t *testing.T) {
	if got := ArgMax([]float64{0.1, 0.7, 0.2, 0.7}); got != 1 {
		t.Errorf("want(1) have(%v)", got)
	}
}
