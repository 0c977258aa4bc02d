package config

// ConfigDiff describes what changed between two configs. Only fields that
// can be safely hot-reloaded are tracked; sample-rate or frame-size changes
// require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// MicDeviceChanged is set when the configured input device changed;
	// the microphone session must be restarted to pick it up.
	MicDeviceChanged bool

	// LoopbackToggled is set when loopback capture was enabled or
	// disabled. NewLoopbackEnabled carries the new state.
	LoopbackToggled    bool
	NewLoopbackEnabled bool
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.MicDeviceChanged || d.LoopbackToggled
}

// Diff compares old and new configs and returns what changed. Only tracks
// changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Capture.Mic != new.Capture.Mic {
		d.MicDeviceChanged = true
	}
	if old.Capture.Loopback.Enabled != new.Capture.Loopback.Enabled {
		d.LoopbackToggled = true
		d.NewLoopbackEnabled = new.Capture.Loopback.Enabled
	}

	return d
}
