package capture_test

import (
	"errors"
	"math"
	"testing"

	"github.com/TheAJArchit3020/speech-analyzer/pkg/capture"
	"github.com/TheAJArchit3020/speech-analyzer/pkg/pcm"
)

// rampSamples produces values that survive PCM16 quantization exactly, so
// ordering assertions can compare against the original indices.
func rampSamples(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start+i) / 32768
	}
	return out
}

func collectFrames(frames *[][]int16) func([]int16) {
	return func(frame []int16) {
		cp := make([]int16, len(frame))
		copy(cp, frame)
		*frames = append(*frames, cp)
	}
}

func TestAssembler_FrameInvariant(t *testing.T) {
	// Total pushed = 3*4 + 2: exactly 3 frames and a residue of 2.
	const spf = 4
	var frames [][]int16
	asm, err := capture.NewAssembler(spf, collectFrames(&frames))
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}

	offset := 0
	for _, n := range []int{3, 2, 6, 1, 2} {
		if err := asm.Push(rampSamples(offset, n)); err != nil {
			t.Fatalf("Push: %v", err)
		}
		offset += n
	}

	if len(frames) != 3 {
		t.Fatalf("emitted %d frames, want 3", len(frames))
	}
	idx := 0
	for f, frame := range frames {
		if len(frame) != spf {
			t.Fatalf("frame %d has %d samples, want %d", f, len(frame), spf)
		}
		for _, s := range frame {
			if int(s) != idx {
				t.Fatalf("frame %d: sample = %d, want %d (ordering broken)", f, s, idx)
			}
			idx++
		}
	}
	if asm.Pending() != 2 {
		t.Errorf("residual = %d, want 2", asm.Pending())
	}
}

func TestAssembler_MultipleFramesFromOnePush(t *testing.T) {
	const spf = 4
	var frames [][]int16
	asm, _ := capture.NewAssembler(spf, collectFrames(&frames))

	if err := asm.Push(rampSamples(0, 3*spf+1)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(frames) != 3 {
		t.Errorf("emitted %d frames, want 3", len(frames))
	}
	if asm.Pending() != 1 {
		t.Errorf("residual = %d, want 1", asm.Pending())
	}
}

func TestAssembler_NoPartialFrames(t *testing.T) {
	var frames [][]int16
	asm, _ := capture.NewAssembler(1600, collectFrames(&frames))

	if err := asm.Push(rampSamples(0, 1599)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("emitted %d frames before a full frame accumulated", len(frames))
	}
	if err := asm.Push(rampSamples(1599, 1)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(frames) != 1 || len(frames[0]) != 1600 {
		t.Fatalf("expected exactly one 1600-sample frame, got %d", len(frames))
	}
	if asm.Pending() != 0 {
		t.Errorf("residual = %d, want 0", asm.Pending())
	}
}

func TestAssembler_NonFiniteSampleFailsLoudly(t *testing.T) {
	var frames [][]int16
	asm, _ := capture.NewAssembler(2, collectFrames(&frames))

	err := asm.Push([]float32{0.5, float32(math.NaN())})
	if !errors.Is(err, pcm.ErrInvalidInput) {
		t.Errorf("Push error = %v, want ErrInvalidInput", err)
	}
	if len(frames) != 0 {
		t.Errorf("emitted %d frames from corrupt input", len(frames))
	}
}

func TestNewAssembler_Validation(t *testing.T) {
	if _, err := capture.NewAssembler(0, func([]int16) {}); err == nil {
		t.Error("expected error for zero samples per frame")
	}
	if _, err := capture.NewAssembler(1600, nil); err == nil {
		t.Error("expected error for nil emit callback")
	}
}
