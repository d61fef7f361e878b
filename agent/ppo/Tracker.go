package ppo

import (
	"math"
)

// Decision is the outcome of tracking one batch's mean reward
type Decision int

const (
	// Kept means the live policy is kept as is
	Kept Decision = iota

	// Improved means a new best mean reward was seen, and the live
	// policy should become the best policy
	Improved

	// Reverted means performance dropped by more than the reversion
	// threshold and the live policy should be replaced by the best
	// policy
	Reverted
)

func (d Decision) String() string {
	switch d {
	case Improved:
		return "improved"
	case Reverted:
		return "reverted"
	default:
		return "kept"
	}
}

// Tracker records the mean reward of each batch and decides when the
// live policy should be snapshot or reverted
type Tracker struct {
	best    float64
	history []float64
}

// NewTracker returns a Tracker that has not seen any batches
func NewTracker() *Tracker {
	return &Tracker{best: math.Inf(-1)}
}

// Observe records the mean reward of a batch and returns whether the
// policy improved, should be reverted, or should be kept.
//
// The fractional drop (best - mean) / |best| is compared against
// threshold. When the best mean reward is 0 the drop is undefined and
// the policy is never reverted.
func (t *Tracker) Observe(mean, threshold float64) Decision {
	t.history = append(t.history, mean)

	if mean > t.best {
		t.best = mean
		return Improved
	}
	if t.best == 0 || math.IsInf(t.best, -1) {
		return Kept
	}
	if (t.best-mean)/math.Abs(t.best) > threshold {
		return Reverted
	}
	return Kept
}

// Best returns the best mean reward seen so far, or -Inf if nothing
// has been observed
func (t *Tracker) Best() float64 {
	return t.best
}

// History returns a copy of all observed mean rewards in order
func (t *Tracker) History() []float64 {
	return append([]float64(nil), t.history...)
}
