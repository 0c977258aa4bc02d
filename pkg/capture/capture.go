// Package capture defines the real-time audio capture pipeline core: the
// frame assembler, the level monitor, and the [Session] that orchestrates
// one capture source into a uniform stream of fixed-duration PCM16 frames
// plus a bounded-rate loudness indicator.
//
// The two primary abstractions are:
//
//   - [Source] — acquires a live audio stream from the operating system and
//     pushes raw sample blocks into a [Pipeline].
//   - [Session] — owns one Source, one [Assembler], and one [LevelMonitor];
//     it is the unit of lifecycle and error handling.
//
// Source implementations are provided by the internal/mic and
// internal/loopback packages. Downstream collaborators (the transcription
// engine, UI level meters) consume frames and levels through the callbacks
// in [Options]; they never reach into pipeline internals.
package capture

import (
	"context"
	"time"
)

// Default pipeline parameters. The target rate and frame duration match what
// the transcription stage expects: 100 ms frames at 16 kHz, 1600 samples.
const (
	DefaultTargetSampleRate = 16000
	DefaultFrameDuration    = 100 * time.Millisecond
	DefaultLevelInterval    = 100 * time.Millisecond
)

// Role distinguishes the two capture sources of a session pair by product
// convention: the microphone is the local speaker, the system loopback is
// everyone else.
type Role string

const (
	RoleSelf  Role = "self"
	RoleOther Role = "other"
)

// State is the lifecycle state of a [Session]. Transitions happen only via
// Start and Stop.
type State int

const (
	StateIdle State = iota
	StateCapturing
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// Device identifies an audio device to capture from. The pipeline treats it
// as an opaque input parameter; enumeration is a collaborator concern.
type Device struct {
	// ID is the backend-specific device identifier. Empty selects the
	// system default device.
	ID string

	// Label is the human-readable device name, for logs and UI.
	Label string
}

// Options configures a [Session.Start] call. The zero value is usable: all
// callbacks are optional and the pipeline parameters fall back to the
// package defaults.
type Options struct {
	// TargetSampleRate is the output sample rate in Hz. Default 16000.
	TargetSampleRate int

	// FrameDuration is the fixed duration of each emitted frame.
	// Default 100 ms.
	FrameDuration time.Duration

	// LevelInterval is the level monitor tick. Default 100 ms.
	LevelInterval time.Duration

	// OnPcmFrame is invoked once per completed frame with exactly
	// samplesPerFrame int16 samples. The consumer must not retain or
	// mutate the slice beyond the call.
	OnPcmFrame func(samples []int16)

	// OnLevel is invoked at the monitor's cadence with a loudness value
	// in [0, 1].
	OnLevel func(level float64)

	// OnError receives asynchronous pipeline failures that occur after
	// Start has returned, such as an unexpected capture channel teardown.
	// When nil, such failures are logged only.
	OnError func(err error)
}

// withDefaults returns a copy of o with unset pipeline parameters replaced
// by the package defaults.
func (o Options) withDefaults() Options {
	if o.TargetSampleRate == 0 {
		o.TargetSampleRate = DefaultTargetSampleRate
	}
	if o.FrameDuration == 0 {
		o.FrameDuration = DefaultFrameDuration
	}
	if o.LevelInterval == 0 {
		o.LevelInterval = DefaultLevelInterval
	}
	return o
}

// FrameSink is the boundary the transcription engine implements: it receives
// completed PCM16 frames and nothing else.
type FrameSink interface {
	OnPcmFrame(samples []int16)
}

// FrameFunc adapts a plain function to the [FrameSink] interface.
type FrameFunc func(samples []int16)

// OnPcmFrame calls f(samples).
func (f FrameFunc) OnPcmFrame(samples []int16) { f(samples) }

// Source acquires a live audio stream from the operating system, owns the
// associated audio engine resources, and pushes raw sample blocks into the
// session's [Pipeline] at a fixed polling cadence.
//
// Implementations must guarantee that a failed Start releases every
// partially-acquired resource before the error propagates, and that Stop is
// idempotent, callable from any state, and never fails.
type Source interface {
	// Start acquires the device and begins capture into p. It blocks until
	// the stream is live or a taxonomy error (ErrPermissionDenied,
	// ErrDeviceUnavailable, ErrEngineInit, ErrChannel) is returned.
	Start(ctx context.Context, p *Pipeline) error

	// Stop tears down the stream, timers, and engine resources
	// unconditionally. Errors during teardown are logged and swallowed.
	Stop()
}
