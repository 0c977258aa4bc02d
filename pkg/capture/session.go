package capture

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Session orchestrates one capture source, frame assembler, and level
// monitor. It exclusively owns all three; nothing is shared across
// sessions, so a microphone and a loopback session running concurrently
// never touch each other's state. All exported methods are safe for
// concurrent use.
type Session struct {
	role   Role
	source Source
	clock  Clock

	mu       sync.Mutex
	state    State
	monitor  *LevelMonitor
	pipeline *Pipeline
}

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithClock replaces the wall clock, letting tests drive the level monitor
// deterministically.
func WithClock(clk Clock) SessionOption {
	return func(s *Session) { s.clock = clk }
}

// NewSession creates an idle session around the given source.
func NewSession(role Role, source Source, opts ...SessionOption) *Session {
	s := &Session{
		role:   role,
		source: source,
		clock:  SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Role returns the session's product role.
func (s *Session) Role() Role { return s.role }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start builds the pipeline from opts and starts the source. It fails with
// [ErrAlreadyCapturing] when the session is already capturing, and
// guarantees that any failure leaves the session idle with every
// partially-acquired resource released.
//
// Start blocks while the source acquires its device, which for the
// loopback source can take up to its ready timeout. Cancelling ctx is the
// way to abandon a start in progress; a concurrent Stop waits for the
// in-flight Start to settle first.
func (s *Session) Start(ctx context.Context, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCapturing {
		return fmt.Errorf("capture: start %s session: %w", s.role, ErrAlreadyCapturing)
	}

	opts = opts.withDefaults()
	samplesPerFrame := int(math.Round(float64(opts.TargetSampleRate) * opts.FrameDuration.Seconds()))

	onFrame := func(frame []int16) {
		if opts.OnPcmFrame != nil {
			opts.OnPcmFrame(frame)
		}
	}
	monitor := NewLevelMonitor(opts.LevelInterval, s.clock, func(level float64) {
		if opts.OnLevel != nil {
			opts.OnLevel(level)
		}
	})

	pipe, err := NewPipeline(opts.TargetSampleRate, samplesPerFrame, onFrame, monitor, opts.OnError)
	if err != nil {
		return fmt.Errorf("capture: start %s session: %w", s.role, err)
	}

	monitor.Start()
	if err := s.source.Start(ctx, pipe); err != nil {
		monitor.Stop()
		return fmt.Errorf("capture: start %s source: %w", s.role, err)
	}

	s.state = StateCapturing
	s.monitor = monitor
	s.pipeline = pipe

	slog.Info("capture session started",
		"role", s.role,
		"target_sample_rate", opts.TargetSampleRate,
		"samples_per_frame", samplesPerFrame,
	)
	return nil
}

// Stop tears down the source, the level monitor, and the pipeline. It is a
// no-op on an idle session and never fails: teardown errors are the
// source's to log and swallow. Stop does not interrupt an in-flight Start;
// cancel that Start's context instead.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return
	}

	s.source.Stop()
	s.monitor.Stop()
	s.monitor = nil
	s.pipeline = nil
	s.state = StateIdle

	slog.Info("capture session stopped", "role", s.role)
}
