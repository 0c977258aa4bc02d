// Package pcm implements the pure sample-level operations of the capture
// pipeline: loudness measurement, box-filter downsampling, and conversion
// between normalized float samples and 16-bit signed PCM.
//
// All functions validate their numeric inputs and fail with an error
// wrapping [ErrInvalidInput] instead of silently clamping or degrading:
// a non-finite sample or a zero sample rate indicates a bug upstream, and
// silent corruption of audio data is worse than a loud failure. None of
// the functions hold state; they are safe for concurrent use.
package pcm

import "errors"

// ErrInvalidInput marks a programming-contract violation: malformed numeric
// data such as a non-finite sample, an empty block where one is required, or
// a zero/negative sample rate. Callers should not retry.
var ErrInvalidInput = errors.New("pcm: invalid input")
