package ppo

import "math"

// Scheduler decays the entropy coefficient and reversion threshold
// after each iteration
type Scheduler struct {
	entropy      float64
	entropyDecay float64

	threshold      float64
	thresholdDecay float64
	minThreshold   float64
}

// NewScheduler returns a Scheduler starting from the hyperparameters
// in c
func NewScheduler(c Config) *Scheduler {
	return &Scheduler{
		entropy:        c.EntropyCoefficient,
		entropyDecay:   c.EntropyDecay,
		threshold:      c.ReversionThreshold,
		thresholdDecay: c.ReversionThresholdDecay,
		minThreshold:   c.MinReversionThreshold,
	}
}

// Step decays the hyperparameters. The entropy coefficient is
// multiplied by its decay and the reversion threshold by the square of
// its decay, with the threshold floored at its minimum.
func (s *Scheduler) Step() {
	s.entropy *= s.entropyDecay

	decay := s.thresholdDecay * s.thresholdDecay
	s.threshold = math.Max(decay*s.threshold, s.minThreshold)
}

// EntropyCoefficient returns the current entropy coefficient
func (s *Scheduler) EntropyCoefficient() float64 {
	return s.entropy
}

// ReversionThreshold returns the current reversion threshold
func (s *Scheduler) ReversionThreshold() float64 {
	return s.threshold
}
