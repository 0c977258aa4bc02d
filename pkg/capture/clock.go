package capture

import "time"

// Clock abstracts timer creation so that the poll-driven components can be
// tested with a virtual clock instead of wall-clock timers.
type Clock interface {
	NewTicker(d time.Duration) Ticker
	NewTimer(d time.Duration) Timer
}

// Ticker is the subset of [time.Ticker] the pipeline needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer is the subset of [time.Timer] the pipeline needs.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// SystemClock is the wall-clock [Clock] used outside of tests.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) NewTicker(d time.Duration) Ticker { return systemTicker{time.NewTicker(d)} }
func (systemClock) NewTimer(d time.Duration) Timer   { return systemTimer{time.NewTimer(d)} }

type systemTicker struct{ t *time.Ticker }

func (t systemTicker) C() <-chan time.Time { return t.t.C }
func (t systemTicker) Stop()               { t.t.Stop() }

type systemTimer struct{ t *time.Timer }

func (t systemTimer) C() <-chan time.Time { return t.t.C }
func (t systemTimer) Stop() bool          { return t.t.Stop() }
