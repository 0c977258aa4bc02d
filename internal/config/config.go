// Package config provides the configuration schema, loader, and file
// watcher for the speech analyzer service.
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Backend selects the audio capture implementation.
type Backend string

const (
	// BackendMalgo captures through miniaudio.
	BackendMalgo Backend = "malgo"

	// BackendPortAudio captures through PortAudio.
	BackendPortAudio Backend = "portaudio"
)

// IsValid reports whether b is a recognised capture backend.
func (b Backend) IsValid() bool {
	return b == BackendMalgo || b == BackendPortAudio
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Capture CaptureConfig `yaml:"capture"`
}

// ServerConfig holds network and logging settings for the HTTP surface.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CaptureConfig holds the audio capture parameters shared by the microphone
// and loopback sessions. Zero values fall back to the application defaults
// via the accessor methods.
type CaptureConfig struct {
	// Backend selects the microphone capture implementation.
	Backend Backend `yaml:"backend"`

	// TargetSampleRate is the output rate in Hz that frames are
	// normalised to. Must not exceed NativeSampleRate.
	TargetSampleRate int `yaml:"target_sample_rate"`

	// NativeSampleRate is the rate in Hz requested from the devices.
	NativeSampleRate int `yaml:"native_sample_rate"`

	// FrameDurationMs is the length of one emitted PCM frame.
	FrameDurationMs int `yaml:"frame_duration_ms"`

	// PollIntervalMs is the device polling cadence.
	PollIntervalMs int `yaml:"poll_interval_ms"`

	// AnalysisWindow is the number of most recent samples fed to the RMS
	// meter each poll.
	AnalysisWindow int `yaml:"analysis_window"`

	// LevelIntervalMs is the cadence of level events.
	LevelIntervalMs int `yaml:"level_interval_ms"`

	Mic      MicConfig      `yaml:"mic"`
	Loopback LoopbackConfig `yaml:"loopback"`
}

// MicConfig selects the microphone input device. Empty values mean the
// system default device.
type MicConfig struct {
	// DeviceID is the backend-specific device identifier.
	DeviceID string `yaml:"device_id"`

	// Label is the human-readable device name, matched when DeviceID is
	// not known.
	Label string `yaml:"label"`
}

// LoopbackConfig controls system-audio capture.
type LoopbackConfig struct {
	// Enabled turns the loopback session on.
	Enabled bool `yaml:"enabled"`

	// ReadyTimeoutS is how long to wait for the loopback engine to come
	// up, in seconds.
	ReadyTimeoutS int `yaml:"ready_timeout_s"`
}

// TargetRate returns the configured target sample rate or the 16 kHz
// default.
func (c CaptureConfig) TargetRate() int {
	if c.TargetSampleRate <= 0 {
		return 16000
	}
	return c.TargetSampleRate
}

// NativeRate returns the configured device sample rate or the 48 kHz
// default.
func (c CaptureConfig) NativeRate() int {
	if c.NativeSampleRate <= 0 {
		return 48000
	}
	return c.NativeSampleRate
}

// Window returns the configured analysis window or the 2048-sample default.
func (c CaptureConfig) Window() int {
	if c.AnalysisWindow <= 0 {
		return 2048
	}
	return c.AnalysisWindow
}

func (c CaptureConfig) FrameDuration() time.Duration {
	if c.FrameDurationMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.FrameDurationMs) * time.Millisecond
}

func (c CaptureConfig) PollInterval() time.Duration {
	if c.PollIntervalMs <= 0 {
		return 10 * time.Millisecond
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c CaptureConfig) LevelInterval() time.Duration {
	if c.LevelIntervalMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.LevelIntervalMs) * time.Millisecond
}

func (c LoopbackConfig) ReadyTimeout() time.Duration {
	if c.ReadyTimeoutS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ReadyTimeoutS) * time.Second
}
