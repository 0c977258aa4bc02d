package capture_test

import (
	"sync"
	"time"

	"github.com/TheAJArchit3020/speech-analyzer/pkg/capture"
)

// fakeClock hands out manually driven tickers and timers so tests control
// time instead of sleeping.
type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
	timers  []*fakeTimer
}

func (c *fakeClock) NewTicker(time.Duration) capture.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) NewTimer(time.Duration) capture.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	return t
}

// tick delivers one tick to every ticker, blocking until each consumer has
// picked it up.
func (c *fakeClock) tick() {
	c.mu.Lock()
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mu.Unlock()
	for _, t := range tickers {
		t.ch <- time.Now()
	}
}

// fire expires every outstanding timer.
func (c *fakeClock) fire() {
	c.mu.Lock()
	timers := append([]*fakeTimer(nil), c.timers...)
	c.mu.Unlock()
	for _, t := range timers {
		select {
		case t.ch <- time.Now():
		default:
		}
	}
}

type fakeTicker struct{ ch chan time.Time }

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

type fakeTimer struct{ ch chan time.Time }

func (t *fakeTimer) C() <-chan time.Time { return t.ch }
func (t *fakeTimer) Stop() bool          { return true }
