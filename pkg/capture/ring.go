package capture

import "sync"

// SampleRing is a fixed-capacity ring buffer of float samples sitting
// between a device callback (writer) and a poll loop (reader). Writes never
// block: when the reader falls behind, the oldest unread samples are
// overwritten and counted as dropped. Safe for concurrent use by one writer
// and one reader.
type SampleRing struct {
	mu      sync.Mutex
	buf     []float32
	w       int    // next write position
	filled  int    // total valid samples, ≤ cap
	unread  int    // samples written but not yet drained, ≤ cap
	dropped uint64 // unread samples lost to overwrite
}

// NewSampleRing creates a ring holding up to capacity samples.
func NewSampleRing(capacity int) *SampleRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &SampleRing{buf: make([]float32, capacity)}
}

// Write appends samples, overwriting the oldest data when full. Blocks only
// on the internal mutex, which both sides hold for a bounded copy.
func (r *SampleRing) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(samples) > len(r.buf) {
		// Only the newest capacity-worth of samples can survive anyway.
		r.dropped += uint64(len(samples) - len(r.buf))
		samples = samples[len(samples)-len(r.buf):]
	}

	wrote := len(samples)
	for len(samples) > 0 {
		n := copy(r.buf[r.w:], samples)
		r.w = (r.w + n) % len(r.buf)
		samples = samples[n:]
	}
	r.filled = min(r.filled+wrote, len(r.buf))
	r.unread += wrote
	if r.unread > len(r.buf) {
		r.dropped += uint64(r.unread - len(r.buf))
		r.unread = len(r.buf)
	}
}

// Drain returns all samples written since the previous Drain, in arrival
// order, and marks them consumed. Returns nil when nothing new arrived.
func (r *SampleRing) Drain() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unread == 0 {
		return nil
	}
	out := r.copyTail(r.unread)
	r.unread = 0
	return out
}

// Window returns the most recent min(n, available) samples in arrival order
// without consuming them. Used for the fixed-size analysis window feeding
// the RMS meter.
func (r *SampleRing) Window(n int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.filled {
		n = r.filled
	}
	if n <= 0 {
		return nil
	}
	return r.copyTail(n)
}

// Dropped returns the total number of unread samples lost to overwrite.
func (r *SampleRing) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// copyTail copies the n samples ending just before the write position.
// Caller holds the mutex.
func (r *SampleRing) copyTail(n int) []float32 {
	out := make([]float32, n)
	start := (r.w - n + len(r.buf)) % len(r.buf)
	m := copy(out, r.buf[start:])
	if m < n {
		copy(out[m:], r.buf[:n-m])
	}
	return out
}
