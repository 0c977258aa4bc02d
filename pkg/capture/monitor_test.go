package capture_test

import (
	"testing"
	"time"

	"github.com/TheAJArchit3020/speech-analyzer/pkg/capture"
)

func startMonitor(t *testing.T) (*capture.LevelMonitor, *fakeClock, chan float64) {
	t.Helper()
	clk := &fakeClock{}
	events := make(chan float64)
	m := capture.NewLevelMonitor(100*time.Millisecond, clk, func(level float64) {
		events <- level
	})
	m.Start()
	t.Cleanup(m.Stop)
	return m, clk, events
}

func TestLevelMonitor_EmitsFreshValue(t *testing.T) {
	m, clk, events := startMonitor(t)

	m.Observe(0.5)
	clk.tick()
	if got := <-events; got != 0.5 {
		t.Errorf("level = %v, want 0.5", got)
	}
}

func TestLevelMonitor_LastValueWins(t *testing.T) {
	m, clk, events := startMonitor(t)

	m.Observe(0.1)
	m.Observe(0.9)
	clk.tick()
	if got := <-events; got != 0.9 {
		t.Errorf("level = %v, want 0.9 (intermediate values are overwritten)", got)
	}
}

func TestLevelMonitor_NoStaleRepeats(t *testing.T) {
	m, clk, events := startMonitor(t)

	m.Observe(0.5)
	clk.tick()
	if got := <-events; got != 0.5 {
		t.Fatalf("level = %v, want 0.5", got)
	}

	// A tick with no new observation must emit nothing: the next event
	// received has to be the next fresh value, not a repeat of 0.5.
	clk.tick()
	m.Observe(0.7)
	clk.tick()
	if got := <-events; got != 0.7 {
		t.Errorf("level = %v, want 0.7 (stale value was repeated)", got)
	}
}

func TestLevelMonitor_StopIsIdempotent(t *testing.T) {
	clk := &fakeClock{}
	m := capture.NewLevelMonitor(0, clk, nil)
	m.Start()
	m.Stop()
	m.Stop()

	// Stop without Start must not hang either.
	m2 := capture.NewLevelMonitor(0, clk, nil)
	m2.Stop()
}
