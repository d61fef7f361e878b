package environment

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// ActionMap maps discrete action indices to the control vectors that
// are sent to an Environment. An ActionMap is immutable once built:
// every accessor returns copies.
type ActionMap struct {
	actions [][]float64
	dim     int
}

// NewActionMap returns an ActionMap where index i maps to actions[i].
// All actions must have the same, positive dimension.
func NewActionMap(actions [][]float64) (*ActionMap, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("newactionmap: no actions given")
	}
	dim := len(actions[0])
	if dim == 0 {
		return nil, fmt.Errorf("newactionmap: actions must be non-empty")
	}

	copied := make([][]float64, len(actions))
	for i, action := range actions {
		if len(action) != dim {
			return nil, fmt.Errorf("newactionmap: action %d has dimension "+
				"%d, expected %d", i, len(action), dim)
		}
		copied[i] = append([]float64(nil), action...)
	}
	return &ActionMap{actions: copied, dim: dim}, nil
}

// NewGridActionMap returns an ActionMap over the Cartesian product of
// levels evenly spaced values per action dimension, including both
// bounds of each interval. Index 0 maps to the lower corner of the box
// and the last action dimension varies fastest.
func NewGridActionMap(bounds []r1.Interval, levels int) (*ActionMap, error) {
	if len(bounds) == 0 {
		return nil, fmt.Errorf("newgridactionmap: no bounds given")
	}
	if levels < 2 {
		return nil, fmt.Errorf("newgridactionmap: need at least 2 levels "+
			"per dimension, have %d", levels)
	}

	values := make([][]float64, len(bounds))
	for i, b := range bounds {
		if b.Min > b.Max {
			return nil, fmt.Errorf("newgridactionmap: dimension %d has "+
				"min %v > max %v", i, b.Min, b.Max)
		}
		values[i] = floats.Span(make([]float64, levels), b.Min, b.Max)
	}

	n := int(math.Pow(float64(levels), float64(len(bounds))))
	actions := make([][]float64, n)
	for i := range actions {
		action := make([]float64, len(bounds))
		rem := i
		for d := len(bounds) - 1; d >= 0; d-- {
			action[d] = values[d][rem%levels]
			rem /= levels
		}
		actions[i] = action
	}

	return &ActionMap{actions: actions, dim: len(bounds)}, nil
}

// Len returns the number of discrete actions
func (a *ActionMap) Len() int {
	return len(a.actions)
}

// Dim returns the dimension of the control vectors
func (a *ActionMap) Dim() int {
	return a.dim
}

// At returns a copy of the control vector for action index i
func (a *ActionMap) At(i int) (*mat.VecDense, error) {
	if i < 0 || i >= len(a.actions) {
		return nil, fmt.Errorf("at: action index %d out of range [0, %d)", i,
			len(a.actions))
	}
	return mat.NewVecDense(a.dim, append([]float64(nil), a.actions[i]...)),
		nil
}

// Nearest returns the index of the action closest in Euclidean
// distance to the control vector v. Ties go to the lowest index.
func (a *ActionMap) Nearest(v []float64) (int, error) {
	if len(v) != a.dim {
		return 0, fmt.Errorf("nearest: control vector has dimension %d, "+
			"expected %d", len(v), a.dim)
	}

	best, bestDist := 0, math.Inf(1)
	for i, action := range a.actions {
		if d := floats.Distance(action, v, 2); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, nil
}

// GobEncode implements the gob.GobEncoder interface
func (a *ActionMap) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a.actions); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode actions: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (a *ActionMap) GobDecode(in []byte) error {
	var actions [][]float64
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&actions); err != nil {
		return fmt.Errorf("gobdecode: could not decode actions: %v", err)
	}
	decoded, err := NewActionMap(actions)
	if err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}
	*a = *decoded
	return nil
}
