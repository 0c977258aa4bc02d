package capture

import "errors"

// Error taxonomy for capture sources and sessions. Numeric contract
// violations inside the pure pipeline stages are reported as
// [github.com/TheAJArchit3020/speech-analyzer/pkg/pcm.ErrInvalidInput].
var (
	// ErrPermissionDenied means the user or OS rejected access to the
	// capture device. Environmental; surfaced to the UI, never retried
	// automatically.
	ErrPermissionDenied = errors.New("capture: permission denied")

	// ErrDeviceUnavailable means no usable capture device exists.
	ErrDeviceUnavailable = errors.New("capture: device unavailable")

	// ErrEngineInit means the underlying audio engine or the isolated
	// loopback agent could not be brought up. Callers may re-invoke Start.
	ErrEngineInit = errors.New("capture: audio engine initialization failed")

	// ErrChannel means the message channel to the loopback capture agent
	// was torn down unexpectedly.
	ErrChannel = errors.New("capture: capture channel torn down")

	// ErrAlreadyCapturing is returned by Start on a session that is
	// already capturing. Stop the session first.
	ErrAlreadyCapturing = errors.New("capture: session is already capturing")
)
