package bc

import (
	"encoding/gob"
	"fmt"
	"os"

	env "github.com/samuelfneumann/armppo/environment"
	"gonum.org/v1/gonum/mat"
)

// Demonstrations are state-action pairs produced by an expert. Actions
// are continuous control vectors.
type Demonstrations struct {
	States  [][]float64
	Actions [][]float64
}

// Len returns the number of state-action pairs
func (d Demonstrations) Len() int {
	return len(d.States)
}

// Validate checks that states and actions pair up and have consistent
// dimensions
func (d Demonstrations) Validate() error {
	if len(d.States) != len(d.Actions) {
		return fmt.Errorf("validate: %d states but %d actions",
			len(d.States), len(d.Actions))
	}
	if len(d.States) == 0 {
		return fmt.Errorf("validate: no demonstrations")
	}
	for i := range d.States {
		if len(d.States[i]) != len(d.States[0]) {
			return fmt.Errorf("validate: state %d has dimension %d, "+
				"expected %d", i, len(d.States[i]), len(d.States[0]))
		}
		if len(d.Actions[i]) != len(d.Actions[0]) {
			return fmt.Errorf("validate: action %d has dimension %d, "+
				"expected %d", i, len(d.Actions[i]), len(d.Actions[0]))
		}
	}
	return nil
}

// Labels returns the index of the nearest discrete action to each
// demonstrated action
func (d Demonstrations) Labels(actionMap *env.ActionMap) ([]int, error) {
	labels := make([]int, len(d.Actions))
	for i, a := range d.Actions {
		index, err := actionMap.Nearest(a)
		if err != nil {
			return nil, fmt.Errorf("labels: action %d: %w", i, err)
		}
		labels[i] = index
	}
	return labels, nil
}

// Record rolls out expert on e for steps environmental steps, starting
// from a reset, and records each state with the expert's action in
// that state
func Record(e env.Environment, expert func([]float64) (*mat.VecDense, error),
	steps int) (Demonstrations, error) {
	step, err := e.Reset()
	if err != nil {
		return Demonstrations{}, fmt.Errorf("record: %w", err)
	}

	var d Demonstrations
	for i := 0; i < steps; i++ {
		state := step.State()
		action, err := expert(state)
		if err != nil {
			return Demonstrations{}, fmt.Errorf("record: step %d: %w", i, err)
		}
		d.States = append(d.States, state)
		d.Actions = append(d.Actions,
			append([]float64(nil), action.RawVector().Data...))

		if step, _, err = e.Step(action); err != nil {
			return Demonstrations{}, fmt.Errorf("record: step %d: %w", i, err)
		}
	}
	return d, nil
}

// Save gob encodes the demonstrations to the file at path
func (d Demonstrations) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(d); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return f.Close()
}

// LoadDemonstrations loads demonstrations saved with Save
func LoadDemonstrations(path string) (Demonstrations, error) {
	f, err := os.Open(path)
	if err != nil {
		return Demonstrations{}, fmt.Errorf("loaddemonstrations: %w", err)
	}
	defer f.Close()

	var d Demonstrations
	if err := gob.NewDecoder(f).Decode(&d); err != nil {
		return Demonstrations{}, fmt.Errorf("loaddemonstrations: %w", err)
	}
	return d, d.Validate()
}
