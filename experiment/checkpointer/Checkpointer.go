// Package checkpointer implements Checkpointers, which save objects
// such as policies periodically during a training run
package checkpointer

import (
	"github.com/samuelfneumann/armppo/agent/ppo"
)

// Serializable is an object that can be saved to a file
type Serializable interface {
	Save(filename string) error
}

// Checkpointer checkpoints/saves serializable objects based on the
// iterations of a training run
type Checkpointer interface {
	Checkpoint(ppo.Iteration) error
}
