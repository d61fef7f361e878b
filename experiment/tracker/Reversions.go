package tracker

import (
	"fmt"

	"github.com/samuelfneumann/armppo/agent/ppo"
)

// Reversions tracks the indices of the iterations in which the policy
// was reverted to the best policy
type Reversions struct {
	indices  []float64
	filename string
}

// NewReversions returns a new Reversions Tracker that saves to
// filename
func NewReversions(filename string) *Reversions {
	return &Reversions{filename: filename}
}

// Track records it if the policy was reverted
func (r *Reversions) Track(it ppo.Iteration) error {
	if it.Decision == ppo.Reverted {
		r.indices = append(r.indices, float64(it.Index))
	}
	return nil
}

// Data returns a copy of the indices of reverted iterations
func (r *Reversions) Data() []float64 {
	return append([]float64(nil), r.indices...)
}

// Save saves the tracked iteration indices to disk
func (r *Reversions) Save() error {
	if err := saveData(r.filename, r.indices); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
