package ppo

import (
	"gonum.org/v1/gonum/stat"
)

// normalizationTol is added to the standard deviation when normalizing
// returns
const normalizationTol = 1e-10

// DiscountedReturns returns the discounted returns of the first h
// rewards, G_t = r_t + γ·G_{t+1} with G_h = 0. Rewards past index h
// are ignored.
func DiscountedReturns(rewards []float64, h int, discount float64) []float64 {
	if h > len(rewards) {
		h = len(rewards)
	}

	returns := make([]float64, h)
	var g float64
	for t := h - 1; t >= 0; t-- {
		g = rewards[t] + discount*g
		returns[t] = g
	}
	return returns
}

// NormalizeReturns returns a copy of returns shifted and scaled to
// zero mean and unit sample standard deviation
func NormalizeReturns(returns []float64) []float64 {
	mean, std := stat.MeanStdDev(returns, nil)

	normalized := make([]float64, len(returns))
	for i, g := range returns {
		normalized[i] = (g - mean) / (std + normalizationTol)
	}
	return normalized
}
