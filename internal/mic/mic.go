// Package mic implements the microphone capture source.
//
// The source opens the configured input device mono at its native rate
// through one of two backends — miniaudio (malgo, the default) or
// PortAudio — and polls the captured samples on a fixed cadence: every tick
// it feeds the most recent analysis window to the RMS meter and drains the
// freshly arrived samples into the session pipeline. Echo cancellation,
// noise suppression, and automatic gain control are hints for the host
// audio system; the pipeline does not re-implement them.
package mic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TheAJArchit3020/speech-analyzer/internal/observe"
	"github.com/TheAJArchit3020/speech-analyzer/pkg/capture"
)

// Recognised backend names.
const (
	BackendMalgo     = "malgo"
	BackendPortAudio = "portaudio"
)

// Capture defaults. The poll interval and analysis window size mirror the
// original product's analyser cadence.
const (
	DefaultSampleRate   = 48000
	DefaultPollInterval = 10 * time.Millisecond
	DefaultWindowSize   = 2048
)

// deviceStream is the OS-facing half of the source: it owns the audio
// engine context and delivers raw mono float blocks from its device
// callback. Close releases everything the stream acquired; it is safe to
// call after a failed Start.
type deviceStream interface {
	Start(onSamples func(samples []float32)) error
	Close() error
}

// Config describes how the microphone should be captured. Zero values fall
// back to the package defaults.
type Config struct {
	// Backend selects the capture implementation: BackendMalgo (default)
	// or BackendPortAudio.
	Backend string

	// Device selects the input device; the zero value means the system
	// default. PortAudio always uses the default device.
	Device capture.Device

	// SampleRate is the native capture rate in Hz.
	SampleRate int

	// PollInterval is the pipeline polling cadence.
	PollInterval time.Duration

	// WindowSize is the analysis window fed to the RMS meter, in samples.
	WindowSize int

	// Clock drives the poll timer; tests inject a virtual clock.
	Clock capture.Clock

	// Metrics receives push latency and dropped-sample counts.
	Metrics *observe.Metrics

	// openStream overrides backend selection in tests.
	openStream func(Config) (deviceStream, error)
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendMalgo
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.WindowSize == 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.Clock == nil {
		c.Clock = capture.SystemClock
	}
	if c.Metrics == nil {
		c.Metrics = observe.DefaultMetrics()
	}
	return c
}

// Source captures from the microphone. It implements [capture.Source].
type Source struct {
	cfg Config

	mu     sync.Mutex
	state  sourceState
	stream deviceStream
	ring   *capture.SampleRing
	stop   chan struct{}
	done   chan struct{}
}

// sourceState tracks the acquisition lifecycle of the device.
type sourceState int

const (
	stateIdle sourceState = iota
	stateRequesting
	stateCapturing
	stateStopped
	stateError
)

// New creates an idle microphone source.
func New(cfg Config) *Source {
	return &Source{cfg: cfg.withDefaults()}
}

// Start acquires the device and begins the poll loop. Any partially
// acquired resource is released before an error is returned.
func (s *Source) Start(ctx context.Context, p *capture.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateCapturing {
		return fmt.Errorf("mic: %w", capture.ErrAlreadyCapturing)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mic: start cancelled: %w", err)
	}

	s.state = stateRequesting

	open := s.cfg.openStream
	if open == nil {
		open = openBackend
	}
	stream, err := open(s.cfg)
	if err != nil {
		s.state = stateError
		return err
	}

	// Ring holds the analysis window plus ample drain backlog; the device
	// callback must never block on the poll loop.
	ring := capture.NewSampleRing(max(4*s.cfg.WindowSize, s.cfg.SampleRate/5))
	if err := stream.Start(ring.Write); err != nil {
		if cerr := stream.Close(); cerr != nil {
			slog.Warn("mic: close after failed start", "err", cerr)
		}
		s.state = stateError
		return err
	}

	s.stream = stream
	s.ring = ring
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.poll(p)
	s.state = stateCapturing

	slog.Info("microphone capture started",
		"backend", s.cfg.Backend,
		"sample_rate", s.cfg.SampleRate,
		"device", s.cfg.Device.Label,
	)
	return nil
}

// Stop cancels the poll loop, stops the hardware stream, and releases the
// audio context. Idempotent, callable from any state, never fails.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
		<-s.done
		s.stop = nil
		s.done = nil
	}
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			slog.Warn("mic: stream close error", "err", err)
		}
		s.stream = nil
	}
	s.ring = nil
	if s.state == stateCapturing || s.state == stateRequesting {
		s.state = stateStopped
		slog.Info("microphone capture stopped")
	}
}

// poll runs on its own goroutine and is the only caller into the pipeline,
// so frames and levels stay in strict arrival order.
func (s *Source) poll(p *capture.Pipeline) {
	defer close(s.done)

	ticker := s.cfg.Clock.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	// Resampling a block shorter than one output window would round to
	// zero samples, so short drains are carried to the next tick instead
	// of being dropped.
	minBlock := (s.cfg.SampleRate + p.TargetSampleRate() - 1) / p.TargetSampleRate()
	var carry []float32

	ctx := context.Background()
	src := string(capture.RoleSelf)
	var lastDropped uint64

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C():
			if win := s.ring.Window(s.cfg.WindowSize); len(win) > 0 {
				if err := p.ObserveLevel(win); err != nil {
					p.ReportError(err)
				}
			}

			block := s.ring.Drain()
			if d := s.ring.Dropped(); d > lastDropped {
				s.cfg.Metrics.AddDroppedSamples(ctx, src, int64(d-lastDropped))
				lastDropped = d
			}
			if len(carry) > 0 {
				block = append(carry, block...)
				carry = nil
			}
			if len(block) == 0 {
				continue
			}
			if len(block) < minBlock {
				carry = block
				continue
			}
			start := time.Now()
			if err := p.PushBlock(block, s.cfg.SampleRate); err != nil {
				p.ReportError(err)
			}
			s.cfg.Metrics.RecordPushDuration(ctx, src, time.Since(start))
		}
	}
}

// openBackend selects the configured device stream implementation.
func openBackend(cfg Config) (deviceStream, error) {
	switch cfg.Backend {
	case BackendMalgo:
		return openMalgoStream(cfg)
	case BackendPortAudio:
		return openPortAudioStream(cfg)
	default:
		return nil, fmt.Errorf("mic: unknown backend %q", cfg.Backend)
	}
}
