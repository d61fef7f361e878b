// Package experiment implements functionality for running PPO training
// runs while tracking and checkpointing their progress
package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/samuelfneumann/armppo/agent/ppo"
	"github.com/samuelfneumann/armppo/experiment/checkpointer"
	"github.com/samuelfneumann/armppo/experiment/tracker"
)

// Progress is notified after each completed iteration
type Progress interface {
	Increment()
}

// PPO runs a PPO Learner for its configured number of iterations.
//
// Each finished iteration is sent to the registered Trackers, which
// cache the data they need, and then to the registered Checkpointers.
// Save saves the data of all Trackers, and is usually called after
// the run has finished.
type PPO struct {
	learner       *ppo.Learner
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	progress      Progress
}

// NewPPO returns a new PPO experiment
func NewPPO(l *ppo.Learner, t []tracker.Tracker,
	c []checkpointer.Checkpointer) *PPO {
	return &PPO{learner: l, trackers: t, checkpointers: c}
}

// Register adds a new Tracker to the (possibly already running)
// experiment
func (p *PPO) Register(t tracker.Tracker) {
	p.trackers = append(p.trackers, t)
}

// SetProgress sets the Progress notified after each iteration
func (p *PPO) SetProgress(pr Progress) {
	p.progress = pr
}

// Learner returns the learner being run
func (p *PPO) Learner() *ppo.Learner {
	return p.learner
}

// RunIteration runs a single training iteration, then tracks and
// checkpoints it
func (p *PPO) RunIteration() (ppo.Iteration, error) {
	it, err := p.learner.Step()
	if err != nil {
		return ppo.Iteration{}, fmt.Errorf("runiteration: %w", err)
	}

	for _, t := range p.trackers {
		if err := t.Track(it); err != nil {
			return it, fmt.Errorf("runiteration: %w", err)
		}
	}
	for _, c := range p.checkpointers {
		if err := c.Checkpoint(it); err != nil {
			return it, fmt.Errorf("runiteration: %w", err)
		}
	}
	if p.progress != nil {
		p.progress.Increment()
	}
	return it, nil
}

// Run runs all remaining iterations, checking ctx between iterations
func (p *PPO) Run(ctx context.Context) error {
	total := p.learner.Config().Iterations
	for p.learner.Completed() < total {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if _, err := p.RunIteration(); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}
	return nil
}

// Save saves all data cached by the Trackers, attempting every Tracker
// even if some fail
func (p *PPO) Save() error {
	var errs []error
	for _, t := range p.trackers {
		if err := t.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
