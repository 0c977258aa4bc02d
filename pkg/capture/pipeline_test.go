package capture_test

import (
	"errors"
	"testing"
	"time"

	"github.com/TheAJArchit3020/speech-analyzer/pkg/capture"
	"github.com/TheAJArchit3020/speech-analyzer/pkg/pcm"
)

func newTestPipeline(t *testing.T, frames *[][]int16) (*capture.Pipeline, *fakeClock, chan float64) {
	t.Helper()
	clk := &fakeClock{}
	levels := make(chan float64, 1)
	monitor := capture.NewLevelMonitor(100*time.Millisecond, clk, func(level float64) {
		levels <- level
	})
	monitor.Start()
	t.Cleanup(monitor.Stop)

	p, err := capture.NewPipeline(16000, 1600, collectFrames(frames), monitor, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, clk, levels
}

// Pushing 100 ms of 48 kHz audio in one call yields exactly one 1600-sample
// frame after 3:1 downsampling, with nothing left over.
func TestPipeline_EndToEndSingleFrame(t *testing.T) {
	var frames [][]int16
	p, _, _ := newTestPipeline(t, &frames)

	block := make([]float32, 4800)
	for i := range block {
		block[i] = 0.25
	}
	if err := p.PushBlock(block, 48000); err != nil {
		t.Fatalf("PushBlock: %v", err)
	}

	if len(frames) != 1 {
		t.Fatalf("emitted %d frames, want 1", len(frames))
	}
	if len(frames[0]) != 1600 {
		t.Errorf("frame length = %d, want 1600", len(frames[0]))
	}
	want := int16(8192) // round(0.25 * 32767)
	for i, s := range frames[0] {
		if s != want {
			t.Fatalf("frame sample %d = %d, want %d", i, s, want)
		}
	}
}

func TestPipeline_ObserveLevelFeedsMonitor(t *testing.T) {
	var frames [][]int16
	p, clk, levels := newTestPipeline(t, &frames)

	window := make([]float32, 2048)
	for i := range window {
		if i%2 == 0 {
			window[i] = 1
		} else {
			window[i] = -1
		}
	}
	if err := p.ObserveLevel(window); err != nil {
		t.Fatalf("ObserveLevel: %v", err)
	}
	clk.tick()
	if got := <-levels; got != 1.0 {
		t.Errorf("level = %v, want 1.0", got)
	}
}

func TestPipeline_ObserveLevelRejectsEmptyWindow(t *testing.T) {
	var frames [][]int16
	p, _, _ := newTestPipeline(t, &frames)
	if err := p.ObserveLevel(nil); !errors.Is(err, pcm.ErrInvalidInput) {
		t.Errorf("ObserveLevel(nil) error = %v, want ErrInvalidInput", err)
	}
}

func TestPipeline_PushFrameDerivesLevel(t *testing.T) {
	var frames [][]int16
	p, clk, levels := newTestPipeline(t, &frames)

	frame := make([]int16, 1600)
	for i := range frame {
		frame[i] = 16384
	}
	p.PushFrame(frame)

	if len(frames) != 1 {
		t.Fatalf("forwarded %d frames, want 1", len(frames))
	}
	clk.tick()
	got := <-levels
	if got < 0.49 || got > 0.51 {
		t.Errorf("derived level = %v, want ≈ 0.5", got)
	}
}

func TestPipeline_ReportErrorPrefersCallback(t *testing.T) {
	clk := &fakeClock{}
	monitor := capture.NewLevelMonitor(0, clk, nil)
	t.Cleanup(monitor.Stop)

	var reported error
	p, err := capture.NewPipeline(16000, 1600, func([]int16) {}, monitor, func(e error) {
		reported = e
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	p.ReportError(capture.ErrChannel)
	if !errors.Is(reported, capture.ErrChannel) {
		t.Errorf("reported = %v, want ErrChannel", reported)
	}
}
