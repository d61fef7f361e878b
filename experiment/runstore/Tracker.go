package runstore

import (
	"github.com/samuelfneumann/armppo/agent/ppo"
	"github.com/samuelfneumann/armppo/experiment/tracker"
)

// runTracker records each tracked iteration of a run in a Store
type runTracker struct {
	store *Store
	runID string
}

// Tracker returns a tracker.Tracker that records iterations of the run
// with ID runID. Iterations are written as they are tracked, so Save
// does nothing.
func (s *Store) Tracker(runID string) tracker.Tracker {
	return &runTracker{store: s, runID: runID}
}

func (r *runTracker) Track(it ppo.Iteration) error {
	return r.store.RecordIteration(r.runID, it)
}

func (r *runTracker) Save() error {
	return nil
}
