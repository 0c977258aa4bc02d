package capture

import (
	"sync"
	"time"
)

// LevelMonitor decouples level-event frequency from raw sample arrival.
// Producers call [LevelMonitor.Observe] with each freshly computed RMS
// value; a fixed-interval tick emits the most recent value if and only if a
// new one arrived since the previous tick. Intermediate values are
// overwritten, not queued (last-value-wins), and a tick with no new sample
// emits nothing — no stale repeats.
type LevelMonitor struct {
	interval time.Duration
	clock    Clock
	emit     func(level float64)

	mu     sync.Mutex
	latest float64
	fresh  bool

	stop    chan struct{}
	done    chan struct{}
	started bool
	stopped bool
}

// NewLevelMonitor creates a monitor ticking every interval on clk. A zero
// interval falls back to [DefaultLevelInterval]; a nil clock uses
// [SystemClock].
func NewLevelMonitor(interval time.Duration, clk Clock, emit func(level float64)) *LevelMonitor {
	if interval <= 0 {
		interval = DefaultLevelInterval
	}
	if clk == nil {
		clk = SystemClock
	}
	return &LevelMonitor{
		interval: interval,
		clock:    clk,
		emit:     emit,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Observe records the most recent loudness value. Cheap enough to call from
// every poll tick.
func (m *LevelMonitor) Observe(level float64) {
	m.mu.Lock()
	m.latest = level
	m.fresh = true
	m.mu.Unlock()
}

// Start launches the tick loop. Calling Start more than once is a no-op.
func (m *LevelMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	go m.run()
}

// Stop halts the tick loop and waits for it to exit. Idempotent and safe to
// call even if Start never ran.
func (m *LevelMonitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	m.mu.Unlock()

	close(m.stop)
	if started {
		<-m.done
	}
}

func (m *LevelMonitor) run() {
	defer close(m.done)
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C():
			m.mu.Lock()
			level, fresh := m.latest, m.fresh
			m.fresh = false
			m.mu.Unlock()
			if fresh && m.emit != nil {
				m.emit(level)
			}
		}
	}
}
