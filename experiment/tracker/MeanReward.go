package tracker

import (
	"fmt"

	"github.com/samuelfneumann/armppo/agent/ppo"
)

// MeanReward tracks and saves the mean batch reward of each iteration.
//
// Iterations must be tracked in order.
type MeanReward struct {
	rewards  []float64
	filename string
}

// NewMeanReward returns a new MeanReward Tracker that saves to
// filename
func NewMeanReward(filename string) *MeanReward {
	return &MeanReward{filename: filename}
}

// Track caches the mean reward of an iteration
func (m *MeanReward) Track(it ppo.Iteration) error {
	if it.Index != len(m.rewards) {
		return fmt.Errorf("track: iterations not sequential: tracked %d "+
			"iterations, got iteration %d", len(m.rewards), it.Index)
	}
	m.rewards = append(m.rewards, it.MeanReward)
	return nil
}

// Data returns a copy of the tracked mean rewards
func (m *MeanReward) Data() []float64 {
	return append([]float64(nil), m.rewards...)
}

// Save saves the tracked mean rewards to disk
func (m *MeanReward) Save() error {
	if err := saveData(m.filename, m.rewards); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
