// Package loopback implements the system-audio capture source.
//
// Capturing a device's output takes a different OS path than microphone
// capture, so acquisition runs inside an isolated [Agent] that owns the
// loopback device and its resample/encode pipeline. The host [Source] and
// the agent communicate only over typed, ordered message channels: the
// host sends enableLoopback and disableLoopback, the agent streams pcmData
// frames back and closes its data channel when it tears down. The agent
// never touches host state, so a crash of the OS loopback path cannot
// corrupt the microphone session.
package loopback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TheAJArchit3020/speech-analyzer/internal/observe"
	"github.com/TheAJArchit3020/speech-analyzer/pkg/capture"
	"github.com/TheAJArchit3020/speech-analyzer/pkg/pcm"
)

// Channel capacities. ctrl holds at most one enable plus one disable, so
// sends into it never block. data buffers a short burst of frames before
// the agent starts dropping instead of stalling the device callback.
const (
	ctrlBuffer = 2
	dataBuffer = 8
)

// agentStream is the OS-facing loopback device, mirroring the microphone
// backend surface.
type agentStream interface {
	Start(onSamples func(samples []float32)) error
	Close() error
}

// AgentConfig parameterizes one agent run. Zero values fall back to the
// package defaults.
type AgentConfig struct {
	SampleRate       int
	TargetSampleRate int
	SamplesPerFrame  int
	PollInterval     time.Duration
	Clock            capture.Clock

	// Metrics receives push latency and dropped-sample counts.
	Metrics *observe.Metrics

	// openStream overrides the miniaudio loopback device in tests.
	openStream func(sampleRate int) (agentStream, error)
}

func (c AgentConfig) withDefaults() AgentConfig {
	if c.SampleRate == 0 {
		c.SampleRate = 48000
	}
	if c.TargetSampleRate == 0 {
		c.TargetSampleRate = capture.DefaultTargetSampleRate
	}
	if c.SamplesPerFrame == 0 {
		c.SamplesPerFrame = 1600
	}
	if c.PollInterval == 0 {
		c.PollInterval = 10 * time.Millisecond
	}
	if c.Clock == nil {
		c.Clock = capture.SystemClock
	}
	if c.Metrics == nil {
		c.Metrics = observe.DefaultMetrics()
	}
	if c.openStream == nil {
		c.openStream = openLoopbackStream
	}
	return c
}

// Agent is the actor that owns the loopback device. Construct it with
// NewAgent, run it with Run on its own goroutine, and talk to it only
// through Control, Data, and Ready.
type Agent struct {
	cfg   AgentConfig
	ctrl  chan Message
	data  chan Message
	ready chan error
}

func NewAgent(cfg AgentConfig) *Agent {
	return &Agent{
		cfg:   cfg.withDefaults(),
		ctrl:  make(chan Message, ctrlBuffer),
		data:  make(chan Message, dataBuffer),
		ready: make(chan error, 1),
	}
}

// Control is the host-to-agent channel.
func (a *Agent) Control() chan<- Message { return a.ctrl }

// Data is the agent-to-host channel. It is closed when the agent tears
// down, whether asked to or not.
func (a *Agent) Data() <-chan Message { return a.data }

// Ready reports the outcome of device acquisition exactly once: nil when
// frames are about to flow, an error when the agent gave up.
func (a *Agent) Ready() <-chan error { return a.ready }

// Run is the actor body. It waits for enableLoopback, acquires the
// device, reports readiness, then streams frames until disableLoopback
// arrives. The data channel is closed on exit.
func (a *Agent) Run() {
	defer close(a.data)

	msg, ok := <-a.ctrl
	if !ok {
		return
	}
	if msg.Kind == KindDisableLoopback {
		return
	}
	if msg.Kind != KindEnableLoopback {
		a.ready <- fmt.Errorf("loopback: agent expected %v, got %v: %w",
			KindEnableLoopback, msg.Kind, capture.ErrChannel)
		return
	}

	stream, err := a.cfg.openStream(a.cfg.SampleRate)
	if err != nil {
		a.ready <- err
		return
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			slog.Warn("loopback: stream close", "err", cerr)
		}
	}()

	ring := capture.NewSampleRing(a.cfg.SampleRate / 5)
	asm, err := capture.NewAssembler(a.cfg.SamplesPerFrame, a.sendFrame)
	if err != nil {
		a.ready <- err
		return
	}
	if err := stream.Start(ring.Write); err != nil {
		a.ready <- err
		return
	}
	a.ready <- nil
	slog.Info("loopback agent ready", "sample_rate", a.cfg.SampleRate)

	ticker := a.cfg.Clock.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	minBlock := (a.cfg.SampleRate + a.cfg.TargetSampleRate - 1) / a.cfg.TargetSampleRate
	var carry []float32

	ctx := context.Background()
	src := string(capture.RoleOther)
	var lastDropped uint64

	for {
		select {
		case msg, ok := <-a.ctrl:
			if !ok || msg.Kind == KindDisableLoopback {
				return
			}
		case <-ticker.C():
			block := ring.Drain()
			if d := ring.Dropped(); d > lastDropped {
				a.cfg.Metrics.AddDroppedSamples(ctx, src, int64(d-lastDropped))
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
			resampled, err := pcm.Resample(block, a.cfg.SampleRate, a.cfg.TargetSampleRate)
			if err != nil {
				slog.Warn("loopback: resample", "err", err)
				continue
			}
			if err := asm.Push(resampled); err != nil {
				slog.Warn("loopback: assemble frame", "err", err)
			}
			a.cfg.Metrics.RecordPushDuration(ctx, src, time.Since(start))
		}
	}
}

// sendFrame forwards one assembled frame without ever blocking the poll
// loop. A stalled host loses frames, not the device.
func (a *Agent) sendFrame(frame []int16) {
	select {
	case a.data <- Message{Kind: KindPCMData, PCM: frame}:
	default:
		a.cfg.Metrics.AddDroppedSamples(context.Background(),
			string(capture.RoleOther), int64(len(frame)))
		slog.Warn("loopback: data channel full, dropping frame",
			"samples", len(frame))
	}
}
