package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/TheAJArchit3020/speech-analyzer/internal/observe"
)

// subscriberBuffer is how many level samples a subscriber may lag behind
// before samples are dropped for it.
const subscriberBuffer = 16

// LevelSample is one audio level event as delivered to websocket clients.
type LevelSample struct {
	// Source is "self" (microphone) or "other" (system loopback).
	Source string `json:"source"`

	// Level is the normalised loudness in [0, 1].
	Level float64 `json:"level"`

	At time.Time `json:"at"`
}

// LevelHub fans level samples out to websocket subscribers. Publishing
// never blocks; a subscriber that cannot keep up loses samples, not the
// producers.
type LevelHub struct {
	mu   sync.Mutex
	subs map[chan LevelSample]struct{}
}

func NewLevelHub() *LevelHub {
	return &LevelHub{subs: make(map[chan LevelSample]struct{})}
}

// Publish delivers s to every current subscriber.
func (h *LevelHub) Publish(s LevelSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel function must
// be called to release it.
func (h *LevelHub) Subscribe() (<-chan LevelSample, func()) {
	ch := make(chan LevelSample, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// ServeWS upgrades the request to a websocket and streams level samples as
// JSON until the client disconnects.
func (h *LevelHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("levels: websocket accept", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ch, cancel := h.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case s := <-ch:
			if err := wsjson.Write(ctx, conn, s); err != nil {
				return
			}
		}
	}
}
