package capture_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/TheAJArchit3020/speech-analyzer/pkg/capture"
)

// fakeSource records lifecycle calls and hands the wired pipeline back to
// the test so it can drive the data path directly.
type fakeSource struct {
	mu       sync.Mutex
	pipe     *capture.Pipeline
	failWith error
	starts   int
	stops    int
}

func (f *fakeSource) Start(_ context.Context, p *capture.Pipeline) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.failWith != nil {
		return f.failWith
	}
	f.pipe = p
	return nil
}

func (f *fakeSource) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeSource) pipeline() *capture.Pipeline {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pipe
}

func (f *fakeSource) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func TestSession_StartStopLifecycle(t *testing.T) {
	src := &fakeSource{}
	s := capture.NewSession(capture.RoleSelf, src, capture.WithClock(&fakeClock{}))

	if s.State() != capture.StateIdle {
		t.Fatalf("initial state = %v, want idle", s.State())
	}
	if err := s.Start(context.Background(), capture.Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.State() != capture.StateCapturing {
		t.Errorf("state after Start = %v, want capturing", s.State())
	}

	s.Stop()
	if s.State() != capture.StateIdle {
		t.Errorf("state after Stop = %v, want idle", s.State())
	}
	if src.stopCount() != 1 {
		t.Errorf("source Stop called %d times, want 1", src.stopCount())
	}
}

func TestSession_StartWhileCapturing(t *testing.T) {
	src := &fakeSource{}
	s := capture.NewSession(capture.RoleSelf, src, capture.WithClock(&fakeClock{}))

	if err := s.Start(context.Background(), capture.Options{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	err := s.Start(context.Background(), capture.Options{})
	if !errors.Is(err, capture.ErrAlreadyCapturing) {
		t.Errorf("second Start error = %v, want ErrAlreadyCapturing", err)
	}
}

func TestSession_StopOnIdleIsNoOp(t *testing.T) {
	src := &fakeSource{}
	s := capture.NewSession(capture.RoleOther, src)

	s.Stop()
	s.Stop()
	if src.stopCount() != 0 {
		t.Errorf("source Stop called %d times on idle session, want 0", src.stopCount())
	}
}

func TestSession_StartRollsBackOnSourceFailure(t *testing.T) {
	src := &fakeSource{failWith: capture.ErrDeviceUnavailable}
	s := capture.NewSession(capture.RoleSelf, src, capture.WithClock(&fakeClock{}))

	err := s.Start(context.Background(), capture.Options{})
	if !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Fatalf("Start error = %v, want ErrDeviceUnavailable", err)
	}
	if s.State() != capture.StateIdle {
		t.Errorf("state after failed Start = %v, want idle", s.State())
	}

	// The session must be restartable after the failure is resolved.
	src.mu.Lock()
	src.failWith = nil
	src.mu.Unlock()
	if err := s.Start(context.Background(), capture.Options{}); err != nil {
		t.Errorf("restart after failure: %v", err)
	}
	s.Stop()
}

func TestSession_FrameAndLevelCallbacks(t *testing.T) {
	src := &fakeSource{}
	clk := &fakeClock{}

	var frames [][]int16
	levels := make(chan float64, 1)
	s := capture.NewSession(capture.RoleSelf, src, capture.WithClock(clk))
	err := s.Start(context.Background(), capture.Options{
		OnPcmFrame: collectFrames(&frames),
		OnLevel:    func(level float64) { levels <- level },
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	pipe := src.pipeline()
	if pipe.TargetSampleRate() != capture.DefaultTargetSampleRate {
		t.Errorf("target rate = %d, want %d", pipe.TargetSampleRate(), capture.DefaultTargetSampleRate)
	}
	if pipe.SamplesPerFrame() != 1600 {
		t.Errorf("samples per frame = %d, want 1600 (100 ms at 16 kHz)", pipe.SamplesPerFrame())
	}

	block := make([]float32, 4800)
	if err := pipe.ObserveLevel(block); err != nil {
		t.Fatalf("ObserveLevel: %v", err)
	}
	if err := pipe.PushBlock(block, 48000); err != nil {
		t.Fatalf("PushBlock: %v", err)
	}

	if len(frames) != 1 || len(frames[0]) != 1600 {
		t.Fatalf("frames = %d, want one 1600-sample frame", len(frames))
	}
	clk.tick()
	if got := <-levels; got != 0 {
		t.Errorf("level of silence = %v, want 0", got)
	}
}

func TestSession_CustomFrameSize(t *testing.T) {
	src := &fakeSource{}
	s := capture.NewSession(capture.RoleSelf, src, capture.WithClock(&fakeClock{}))

	err := s.Start(context.Background(), capture.Options{
		TargetSampleRate: 8000,
		FrameDuration:    capture.DefaultFrameDuration / 2,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if got := src.pipeline().SamplesPerFrame(); got != 400 {
		t.Errorf("samples per frame = %d, want 400 (50 ms at 8 kHz)", got)
	}
}
