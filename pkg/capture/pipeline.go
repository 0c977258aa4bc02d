package capture

import (
	"fmt"
	"log/slog"

	"github.com/TheAJArchit3020/speech-analyzer/pkg/pcm"
)

// Pipeline binds one session's assembler and level monitor behind the entry
// points capture sources push into. The microphone source calls
// [Pipeline.ObserveLevel] with its analysis window and [Pipeline.PushBlock]
// with freshly captured samples; the loopback source delivers ready-made
// frames through [Pipeline.PushFrame].
//
// All methods are invoked from the owning source's single poll or receive
// goroutine; the pipeline adds no locking of its own beyond the monitor's.
type Pipeline struct {
	targetRate int
	assembler  *Assembler
	monitor    *LevelMonitor
	onFrame    func(samples []int16)
	onError    func(err error)
}

// NewPipeline wires a pipeline for one session.
func NewPipeline(targetRate, samplesPerFrame int, onFrame func([]int16), monitor *LevelMonitor, onError func(error)) (*Pipeline, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("capture: target sample rate must be positive, got %d", targetRate)
	}
	if onFrame == nil {
		return nil, fmt.Errorf("capture: pipeline frame callback is required")
	}
	if monitor == nil {
		return nil, fmt.Errorf("capture: pipeline level monitor is required")
	}
	asm, err := NewAssembler(samplesPerFrame, onFrame)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		targetRate: targetRate,
		assembler:  asm,
		monitor:    monitor,
		onFrame:    onFrame,
		onError:    onError,
	}, nil
}

// TargetSampleRate returns the output rate in Hz.
func (p *Pipeline) TargetSampleRate() int { return p.targetRate }

// SamplesPerFrame returns the fixed frame length.
func (p *Pipeline) SamplesPerFrame() int { return p.assembler.SamplesPerFrame() }

// ObserveLevel computes the RMS loudness of an analysis window and records
// it with the level monitor, clamped to [0, 1] for display safety.
func (p *Pipeline) ObserveLevel(samples []float32) error {
	rms, err := pcm.RMS(samples)
	if err != nil {
		return fmt.Errorf("capture: level: %w", err)
	}
	p.monitor.Observe(pcm.Clamp01(rms))
	return nil
}

// PushBlock resamples a raw block from its native rate to the target rate
// and feeds it to the frame assembler, which emits one frame callback per
// completed frame.
func (p *Pipeline) PushBlock(samples []float32, sampleRate int) error {
	resampled, err := pcm.Resample(samples, sampleRate, p.targetRate)
	if err != nil {
		return fmt.Errorf("capture: resample block: %w", err)
	}
	return p.assembler.Push(resampled)
}

// PushFrame re-hydrates a frame assembled by the loopback capture agent:
// the level is derived from the decoded samples and the frame is forwarded
// as-is. The agent guarantees the frame length, so no re-assembly happens.
func (p *Pipeline) PushFrame(samples []int16) {
	if len(samples) == 0 {
		return
	}
	if rms, err := pcm.RMS(pcm.Int16ToFloat(samples)); err == nil {
		p.monitor.Observe(pcm.Clamp01(rms))
	}
	p.onFrame(samples)
}

// ReportError surfaces an asynchronous pipeline failure to the session's
// error callback, or logs it when none was registered.
func (p *Pipeline) ReportError(err error) {
	if p.onError != nil {
		p.onError(err)
		return
	}
	slog.Error("capture pipeline error", "err", err)
}
