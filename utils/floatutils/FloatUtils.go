// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"

	"gonum.org/v1/gonum/spatial/r1"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// ClipInterval is a wrapper to use Clip with an r1.Interval instead of
// a separate max and min value
func ClipInterval(value float64, interval r1.Interval) float64 {
	return Clip(value, interval.Min, interval.Max)
}

// Wrap wraps value so that it lies in the half-open interval
// [min, max). For example, wrapping an angle with min = -π and
// max = π returns the equivalent angle in [-π, π).
func Wrap(value, min, max float64) float64 {
	width := max - min
	if width <= 0 {
		return min
	}
	wrapped := math.Mod(value-min, width)
	if wrapped < 0 {
		wrapped += width
	}
	return wrapped + min
}

// WrapInterval is a wrapper to use Wrap with an r1.Interval
func WrapInterval(value float64, interval r1.Interval) float64 {
	return Wrap(value, interval.Min, interval.Max)
}

// ArgMax returns the index of the largest value in values. Ties are
// broken in favour of the lowest index.
func ArgMax(values []float64) int {
	idx := 0
	for i, value := range values {
		if value > values[idx] {
			idx = i
		}
	}
	return idx
}
