package pcm

import (
	"fmt"
	"math"
)

// RMS returns the root-mean-square loudness of a block of normalized float
// samples: sqrt(mean(s_i²)). For inputs in [-1, 1] the result is always in
// [0, 1]. Callers measuring uncontrolled ranges should pass the result
// through [Clamp01] before feeding a display meter.
//
// Returns an error wrapping [ErrInvalidInput] if the block is empty or
// contains a non-finite sample.
func RMS(samples []float32) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("%w: rms of empty block", ErrInvalidInput)
	}
	var sum float64
	for i, s := range samples {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: non-finite sample at index %d", ErrInvalidInput, i)
		}
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples))), nil
}

// Clamp01 limits v to the closed interval [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
