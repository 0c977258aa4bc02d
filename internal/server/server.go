// Package server exposes the service's HTTP surface: health and readiness
// probes, the Prometheus metrics endpoint, and a websocket stream of audio
// level events for UI meters.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/TheAJArchit3020/speech-analyzer/internal/health"
	"github.com/TheAJArchit3020/speech-analyzer/internal/observe"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP front of the service.
type Server struct {
	hub  *LevelHub
	http *http.Server
}

// New builds the route table and wraps it in the observability middleware.
func New(addr string, checks *health.Handler, hub *LevelHub, metrics *observe.Metrics) *Server {
	mux := http.NewServeMux()
	checks.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws/levels", hub.ServeWS)

	handler := observe.Middleware(metrics)(mux)

	return &Server{
		hub: hub,
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Hub returns the level hub served on /ws/levels.
func (s *Server) Hub() *LevelHub { return s.hub }

// Handler returns the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until ctx is cancelled, then drains connections gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen on %s: %w", s.http.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
