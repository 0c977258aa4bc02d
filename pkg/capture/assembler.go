package capture

import (
	"fmt"

	"github.com/TheAJArchit3020/speech-analyzer/pkg/pcm"
)

// Assembler accumulates variable-length blocks of target-rate float samples
// and emits fixed-size PCM16 frames. Every emitted frame holds exactly
// samplesPerFrame samples in arrival order; the remainder is carried forward
// to the next Push, so the residual buffer is always shorter than one frame.
// Not safe for concurrent use; each session owns exactly one.
type Assembler struct {
	samplesPerFrame int
	buf             []float32
	emit            func(frame []int16)
}

// NewAssembler creates an assembler that calls emit once per completed
// frame.
func NewAssembler(samplesPerFrame int, emit func(frame []int16)) (*Assembler, error) {
	if samplesPerFrame <= 0 {
		return nil, fmt.Errorf("capture: samples per frame must be positive, got %d", samplesPerFrame)
	}
	if emit == nil {
		return nil, fmt.Errorf("capture: assembler emit callback is required")
	}
	return &Assembler{
		samplesPerFrame: samplesPerFrame,
		buf:             make([]float32, 0, 2*samplesPerFrame),
		emit:            emit,
	}, nil
}

// Push appends a block and emits as many complete frames as it enables, in
// order. A single push carrying several frames' worth of samples emits
// several frames. Returns an error only when encoding hits a non-finite
// sample, which indicates an upstream bug.
func (a *Assembler) Push(block []float32) error {
	a.buf = append(a.buf, block...)
	for len(a.buf) >= a.samplesPerFrame {
		frame, err := pcm.FloatToInt16(a.buf[:a.samplesPerFrame])
		if err != nil {
			return fmt.Errorf("capture: encode frame: %w", err)
		}
		n := copy(a.buf, a.buf[a.samplesPerFrame:])
		a.buf = a.buf[:n]
		a.emit(frame)
	}
	return nil
}

// Pending returns the number of residual samples carried toward the next
// frame. Always less than samplesPerFrame.
func (a *Assembler) Pending() int { return len(a.buf) }

// SamplesPerFrame returns the fixed frame length.
func (a *Assembler) SamplesPerFrame() int { return a.samplesPerFrame }
