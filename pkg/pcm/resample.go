package pcm

import (
	"fmt"
	"math"
)

// Resample converts a block of normalized float samples from srcRate to
// dstRate using box-filter (block-average) downsampling. For each output
// index i the source window is [round(i·ratio), round((i+1)·ratio)) where
// ratio = srcRate/dstRate, and the output sample is the arithmetic mean of
// the window (0 for an empty window, which can only happen at the final
// index due to rounding). The output length is round(len(samples)/ratio).
//
// When srcRate == dstRate the input slice is returned unchanged, not a
// copy — callers must not mutate shared buffers after passing them in.
//
// Only downsampling is supported: the capture path always records at a high
// native rate and targets a lower rate for the transcription stage. Returns
// an error wrapping [ErrInvalidInput] if either rate is zero or negative,
// if dstRate exceeds srcRate, if the computed output length is zero, or if
// the block contains a non-finite sample.
func Resample(samples []float32, srcRate, dstRate int) ([]float32, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("%w: sample rates must be positive, got %d -> %d", ErrInvalidInput, srcRate, dstRate)
	}
	if dstRate > srcRate {
		return nil, fmt.Errorf("%w: upsampling %d -> %d is not supported", ErrInvalidInput, srcRate, dstRate)
	}
	for i, s := range samples {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: non-finite sample at index %d", ErrInvalidInput, i)
		}
	}
	if srcRate == dstRate {
		return samples, nil
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(math.Round(float64(len(samples)) / ratio))
	if outLen <= 0 {
		return nil, fmt.Errorf("%w: block of %d samples is too short to resample %d -> %d",
			ErrInvalidInput, len(samples), srcRate, dstRate)
	}

	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		start := int(math.Round(float64(i) * ratio))
		end := int(math.Round(float64(i+1) * ratio))
		if end > len(samples) {
			end = len(samples)
		}
		if start >= end {
			// Empty window at the final index; emit silence.
			continue
		}
		var sum float64
		for _, s := range samples[start:end] {
			sum += float64(s)
		}
		out[i] = float32(sum / float64(end-start))
	}
	return out, nil
}
