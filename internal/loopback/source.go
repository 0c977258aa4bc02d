package loopback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheAJArchit3020/speech-analyzer/internal/observe"
	"github.com/TheAJArchit3020/speech-analyzer/pkg/capture"
)

// DefaultReadyTimeout bounds how long Start waits for the loopback engine
// to come up before declaring it failed.
const DefaultReadyTimeout = 10 * time.Second

// Config describes how system audio should be captured. Zero values fall
// back to the package defaults.
type Config struct {
	// SampleRate is the native loopback capture rate in Hz.
	SampleRate int

	// PollInterval is the agent's drain cadence.
	PollInterval time.Duration

	// ReadyTimeout is how long Start waits for the agent to report ready.
	ReadyTimeout time.Duration

	// Clock drives the agent ticker and the ready timer.
	Clock capture.Clock

	// Metrics receives push latency and dropped-sample counts.
	Metrics *observe.Metrics

	// openStream overrides the miniaudio loopback device in tests.
	openStream func(sampleRate int) (agentStream, error)
}

func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = 48000
	}
	if c.PollInterval == 0 {
		c.PollInterval = 10 * time.Millisecond
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
	if c.Clock == nil {
		c.Clock = capture.SystemClock
	}
	return c
}

// Source captures system audio through an agent. It implements
// [capture.Source].
type Source struct {
	cfg Config

	mu        sync.Mutex
	stopping  atomic.Bool
	agent     *Agent
	recvDone  chan struct{}
	capturing bool
}

// New creates an idle loopback source.
func New(cfg Config) *Source {
	return &Source{cfg: cfg.withDefaults()}
}

// Start spawns the agent, sends enableLoopback, and waits for readiness.
// If the engine does not come up within ReadyTimeout the agent is told to
// halt and Start fails with ErrEngineInit.
func (s *Source) Start(ctx context.Context, p *capture.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capturing {
		return fmt.Errorf("loopback: %w", capture.ErrAlreadyCapturing)
	}

	agent := NewAgent(AgentConfig{
		SampleRate:       s.cfg.SampleRate,
		TargetSampleRate: p.TargetSampleRate(),
		SamplesPerFrame:  p.SamplesPerFrame(),
		PollInterval:     s.cfg.PollInterval,
		Clock:            s.cfg.Clock,
		Metrics:          s.cfg.Metrics,
		openStream:       s.cfg.openStream,
	})
	go agent.Run()
	agent.Control() <- Message{Kind: KindEnableLoopback}

	timer := s.cfg.Clock.NewTimer(s.cfg.ReadyTimeout)
	defer timer.Stop()

	select {
	case err := <-agent.Ready():
		if err != nil {
			return fmt.Errorf("loopback: agent init: %w", err)
		}
	case <-timer.C():
		// The surface never finished loading; tell the agent to halt
		// whenever it does.
		agent.Control() <- Message{Kind: KindDisableLoopback}
		return fmt.Errorf("loopback: engine not ready within %s: %w",
			s.cfg.ReadyTimeout, capture.ErrEngineInit)
	case <-ctx.Done():
		agent.Control() <- Message{Kind: KindDisableLoopback}
		return fmt.Errorf("loopback: start cancelled: %w", ctx.Err())
	}

	s.agent = agent
	s.recvDone = make(chan struct{})
	s.stopping.Store(false)
	s.capturing = true
	go s.recv(agent, p)

	slog.Info("loopback capture started", "sample_rate", s.cfg.SampleRate)
	return nil
}

// recv pumps agent frames into the pipeline. A data channel that closes
// while the source is still supposed to be capturing means the agent tore
// down behind the host's back, which is surfaced as ErrChannel.
func (s *Source) recv(agent *Agent, p *capture.Pipeline) {
	defer close(s.recvDone)

	for msg := range agent.Data() {
		if msg.Kind == KindPCMData {
			p.PushFrame(msg.PCM)
		}
	}
	if !s.stopping.Load() {
		p.ReportError(fmt.Errorf("loopback: agent channel closed unexpectedly: %w", capture.ErrChannel))
	}
}

// Stop sends disableLoopback and waits for the agent to drain and close
// its data channel. Idempotent, never fails.
func (s *Source) Stop() {
	s.mu.Lock()
	if !s.capturing {
		s.mu.Unlock()
		return
	}
	s.capturing = false
	s.stopping.Store(true)
	agent, recvDone := s.agent, s.recvDone
	s.agent, s.recvDone = nil, nil
	s.mu.Unlock()

	agent.Control() <- Message{Kind: KindDisableLoopback}
	<-recvDone

	slog.Info("loopback capture stopped")
}
