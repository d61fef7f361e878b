package checkpointer

import (
	"fmt"

	"github.com/samuelfneumann/armppo/agent/ppo"
)

// nIteration implements checkpointing every N iterations
type nIteration struct {
	interval int

	// object returns the object to save. It is called at every
	// checkpoint, since the object may be replaced during training, as
	// the best policy is.
	object func() Serializable

	// filename returns the filename to save the object in. Use
	// FilenameEnumerator to save each checkpoint in a new numbered
	// file, FileTimer for timestamped files, or FixedFilename to keep
	// only the latest checkpoint.
	filename func() string
}

// NewNIteration returns a Checkpointer that saves the object returned
// by object after every n completed iterations
func NewNIteration(n int, object func() Serializable,
	filename func() string) (Checkpointer, error) {
	if n < 1 {
		return nil, fmt.Errorf("newniteration: interval must be at least 1, "+
			"have %d", n)
	}
	return &nIteration{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint saves the tracked object if it.Index+1 iterations is a
// multiple of the interval
func (n *nIteration) Checkpoint(it ppo.Iteration) error {
	if (it.Index+1)%n.interval != 0 {
		return nil
	}
	if err := n.object().Save(n.filename()); err != nil {
		return fmt.Errorf("checkpoint: iteration %d: %w", it.Index, err)
	}
	return nil
}
