package pcm

import (
	"fmt"
	"math"
)

// FloatToInt16 quantizes a block of normalized float samples to 16-bit
// signed PCM: each sample is clamped to [-1, 1] and scaled by 32767 with
// round-to-nearest. The output is always within [-32768, 32767].
//
// A non-finite input sample fails with an error wrapping [ErrInvalidInput]
// rather than being clamped, because it indicates a pipeline bug upstream,
// not a normal audio condition.
func FloatToInt16(samples []float32) ([]int16, error) {
	out := make([]int16, len(samples))
	for i, s := range samples {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: non-finite sample at index %d", ErrInvalidInput, i)
		}
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		out[i] = int16(math.Round(f * 32767))
	}
	return out, nil
}

// Int16ToFloat converts 16-bit signed PCM back to normalized floats by
// scaling down with 1/32768. The legal input domain is already bounded, so
// the conversion is total.
func Int16ToFloat(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}
