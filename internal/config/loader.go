package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. Only fields
// that are actually set are validated; zero values fall back to defaults
// through the accessor methods. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	cc := cfg.Capture
	if cc.Backend != "" && !cc.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("capture.backend %q is invalid; valid values: malgo, portaudio", cc.Backend))
	}
	if cc.TargetSampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.target_sample_rate %d must be positive", cc.TargetSampleRate))
	}
	if cc.NativeSampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.native_sample_rate %d must be positive", cc.NativeSampleRate))
	}
	if cc.TargetSampleRate > 0 && cc.NativeSampleRate > 0 && cc.TargetSampleRate > cc.NativeSampleRate {
		errs = append(errs, fmt.Errorf("capture.target_sample_rate %d exceeds native_sample_rate %d; only downsampling is supported",
			cc.TargetSampleRate, cc.NativeSampleRate))
	}
	if cc.FrameDurationMs < 0 {
		errs = append(errs, fmt.Errorf("capture.frame_duration_ms %d must be positive", cc.FrameDurationMs))
	}
	if cc.PollIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("capture.poll_interval_ms %d must be positive", cc.PollIntervalMs))
	}
	if cc.AnalysisWindow < 0 {
		errs = append(errs, fmt.Errorf("capture.analysis_window %d must be positive", cc.AnalysisWindow))
	}
	if cc.LevelIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("capture.level_interval_ms %d must be positive", cc.LevelIntervalMs))
	}

	if cc.Backend == BackendPortAudio && (cc.Mic.DeviceID != "" || cc.Mic.Label != "") {
		slog.Warn("capture.mic device selection is ignored by the portaudio backend; the default input device is used")
	}
	if cc.Loopback.Enabled && cc.Backend == BackendPortAudio {
		slog.Warn("loopback capture always uses miniaudio regardless of capture.backend")
	}

	return errors.Join(errs...)
}
