// Package app wires the capture sessions, HTTP server, and observability
// into a running speech-analyzer service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject fake capture sources via functional options
// (WithMicSource, WithLoopbackSource). When an option is not provided, New
// creates real device-backed sources from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TheAJArchit3020/speech-analyzer/internal/config"
	"github.com/TheAJArchit3020/speech-analyzer/internal/health"
	"github.com/TheAJArchit3020/speech-analyzer/internal/loopback"
	"github.com/TheAJArchit3020/speech-analyzer/internal/mic"
	"github.com/TheAJArchit3020/speech-analyzer/internal/observe"
	"github.com/TheAJArchit3020/speech-analyzer/internal/server"
	"github.com/TheAJArchit3020/speech-analyzer/pkg/capture"
)

// Option customises App construction, primarily for tests.
type Option func(*options)

type options struct {
	micSource  capture.Source
	loopSource capture.Source
	metrics    *observe.Metrics
	sink       capture.FrameSink
	logLevel   *slog.LevelVar
}

// WithMicSource replaces the device-backed microphone source.
func WithMicSource(s capture.Source) Option {
	return func(o *options) { o.micSource = s }
}

// WithLoopbackSource replaces the device-backed loopback source. It is only
// used when loopback capture is enabled in the config.
func WithLoopbackSource(s capture.Source) Option {
	return func(o *options) { o.loopSource = s }
}

// WithMetrics replaces the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithFrameSink registers the consumer of completed PCM frames, typically
// the transcription engine. Without a sink, frames are counted and dropped.
func WithFrameSink(s capture.FrameSink) Option {
	return func(o *options) { o.sink = s }
}

// WithLogLevel hands the App the process-wide log level so config reloads
// can adjust verbosity at runtime.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(o *options) { o.logLevel = lv }
}

// App owns the capture sessions and the HTTP surface.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics
	sink    capture.FrameSink

	srv *server.Server
	hub *server.LevelHub

	logLevel *slog.LevelVar

	mu          sync.Mutex
	micSession  *capture.Session
	loopSession *capture.Session

	// Test overrides; nil means device-backed sources are built from config.
	micSource  capture.Source
	loopSource capture.Source

	stopOnce sync.Once
}

// New builds the application from cfg. Capture does not begin until [App.Run].
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}

	a := &App{
		cfg:        cfg,
		metrics:    o.metrics,
		sink:       o.sink,
		hub:        server.NewLevelHub(),
		logLevel:   o.logLevel,
		micSource:  o.micSource,
		loopSource: o.loopSource,
	}
	a.micSession = capture.NewSession(capture.RoleSelf, a.newMicSource(cfg))
	if cfg.Capture.Loopback.Enabled {
		a.loopSession = capture.NewSession(capture.RoleOther, a.newLoopbackSource())
	}

	// Checkers read the current session on every probe so readiness follows
	// session replacement on config reloads.
	checks := []health.Checker{
		health.SessionChecker("mic", a.currentMicSession),
		health.SessionChecker("loopback", a.currentLoopSession),
	}

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	a.srv = server.New(addr, health.New(checks...), a.hub, a.metrics)

	return a, nil
}

// newMicSource returns the injected microphone source when present, so the
// device-change restart path goes through the same factory as New.
func (a *App) newMicSource(cfg *config.Config) capture.Source {
	if a.micSource != nil {
		return a.micSource
	}
	return mic.New(mic.Config{
		Backend: string(cfg.Capture.Backend),
		Device: capture.Device{
			ID:    cfg.Capture.Mic.DeviceID,
			Label: cfg.Capture.Mic.Label,
		},
		SampleRate:   cfg.Capture.NativeRate(),
		PollInterval: cfg.Capture.PollInterval(),
		WindowSize:   cfg.Capture.Window(),
		Metrics:      a.metrics,
	})
}

func (a *App) newLoopbackSource() capture.Source {
	if a.loopSource != nil {
		return a.loopSource
	}
	return loopback.New(loopback.Config{
		SampleRate:   a.cfg.Capture.NativeRate(),
		PollInterval: a.cfg.Capture.PollInterval(),
		ReadyTimeout: a.cfg.Capture.Loopback.ReadyTimeout(),
		Metrics:      a.metrics,
	})
}

func (a *App) currentMicSession() *capture.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.micSession
}

// currentLoopSession returns nil while loopback capture is disabled, which
// the readiness checker treats as passing.
func (a *App) currentLoopSession() *capture.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loopSession
}

// sessionOptions builds the per-role capture options, fanning frames to the
// sink and levels to the websocket hub, with metrics on every path.
func (a *App) sessionOptions(role capture.Role) capture.Options {
	ctx := context.Background()
	source := string(role)
	return capture.Options{
		TargetSampleRate: a.cfg.Capture.TargetRate(),
		FrameDuration:    a.cfg.Capture.FrameDuration(),
		LevelInterval:    a.cfg.Capture.LevelInterval(),
		OnPcmFrame: func(samples []int16) {
			a.metrics.RecordFrame(ctx, source)
			if a.sink != nil {
				a.sink.OnPcmFrame(samples)
			}
		},
		OnLevel: func(level float64) {
			a.metrics.RecordLevel(ctx, source)
			a.hub.Publish(server.LevelSample{
				Source: source,
				Level:  level,
				At:     time.Now(),
			})
		},
		OnError: func(err error) {
			slog.Error("capture error", "source", source, "err", err)
			a.metrics.RecordCaptureError(ctx, source, errKind(err))
		},
	}
}

// Start brings up the capture sessions. The microphone session is required;
// a loopback failure is logged and reported but does not fail startup, so
// the user still gets their own audio when system capture is unavailable.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.micSession.Start(ctx, a.sessionOptions(capture.RoleSelf)); err != nil {
		return fmt.Errorf("app: start mic session: %w", err)
	}
	a.metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("mic capture started",
		"device", a.cfg.Capture.Mic.Label,
		"native_rate", a.cfg.Capture.NativeRate(),
		"target_rate", a.cfg.Capture.TargetRate(),
	)

	if a.loopSession != nil {
		if err := a.loopSession.Start(ctx, a.sessionOptions(capture.RoleOther)); err != nil {
			slog.Warn("loopback capture unavailable", "err", err)
			a.metrics.RecordCaptureError(ctx, string(capture.RoleOther), errKind(err))
			// Degraded mode: the feature is off, not failing, so readiness
			// must not report the dead session.
			a.loopSession = nil
		} else {
			a.metrics.ActiveSessions.Add(ctx, 1)
			slog.Info("loopback capture started")
		}
	}
	return nil
}

// Run starts capture and serves HTTP until ctx is cancelled, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Shutdown()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.srv.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ApplyConfig reacts to a config file reload. Only a few fields are
// hot-reloadable: log level, the microphone device, and the loopback
// toggle. Everything else requires a restart.
func (a *App) ApplyConfig(old, next *config.Config) {
	d := config.Diff(old, next)
	if !d.Changed() {
		return
	}
	slog.Info("configuration reloaded", "diff", fmt.Sprintf("%+v", d))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = next
	ctx := context.Background()

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.MicDeviceChanged {
		a.micSession.Stop()
		a.metrics.ActiveSessions.Add(ctx, -1)
		a.micSession = capture.NewSession(capture.RoleSelf, a.newMicSource(next))
		if err := a.micSession.Start(ctx, a.sessionOptions(capture.RoleSelf)); err != nil {
			slog.Error("mic restart after device change failed", "err", err)
			a.metrics.RecordCaptureError(ctx, string(capture.RoleSelf), errKind(err))
			return
		}
		a.metrics.ActiveSessions.Add(ctx, 1)
		slog.Info("mic capture restarted", "device", next.Capture.Mic.Label)
	}

	if d.LoopbackToggled {
		switch {
		case d.NewLoopbackEnabled && a.loopSession == nil:
			a.loopSession = capture.NewSession(capture.RoleOther, a.newLoopbackSource())
			if err := a.loopSession.Start(ctx, a.sessionOptions(capture.RoleOther)); err != nil {
				slog.Warn("loopback capture unavailable", "err", err)
				a.loopSession = nil
				return
			}
			a.metrics.ActiveSessions.Add(ctx, 1)
			slog.Info("loopback capture started")
		case !d.NewLoopbackEnabled && a.loopSession != nil:
			a.loopSession.Stop()
			a.loopSession = nil
			a.metrics.ActiveSessions.Add(ctx, -1)
			slog.Info("loopback capture stopped")
		}
	}
}

// Shutdown stops the capture sessions. Safe to call more than once; the
// HTTP server drains itself when Run's context is cancelled.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		ctx := context.Background()

		if a.loopSession != nil && a.loopSession.State() == capture.StateCapturing {
			a.loopSession.Stop()
			a.metrics.ActiveSessions.Add(ctx, -1)
		}
		if a.micSession.State() == capture.StateCapturing {
			a.micSession.Stop()
			a.metrics.ActiveSessions.Add(ctx, -1)
		}
		slog.Info("capture sessions stopped")
	})
}

// Hub exposes the level hub, mainly for tests.
func (a *App) Hub() *server.LevelHub { return a.hub }

// Handler exposes the HTTP surface without a listening socket, mainly for
// tests.
func (a *App) Handler() http.Handler { return a.srv.Handler() }

// errKind maps a capture error to its taxonomy label for metrics.
func errKind(err error) string {
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, capture.ErrEngineInit):
		return "engine_init"
	case errors.Is(err, capture.ErrChannel):
		return "channel"
	case errors.Is(err, capture.ErrAlreadyCapturing):
		return "already_capturing"
	default:
		return "unknown"
	}
}

// slogLevel converts a config log level to its slog equivalent.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
