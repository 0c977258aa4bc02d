// Command speech-analyzer captures microphone and system audio, normalises
// it into 16 kHz PCM16 frames for transcription, and serves level events
// and health endpoints over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/TheAJArchit3020/speech-analyzer/internal/app"
	"github.com/TheAJArchit3020/speech-analyzer/internal/config"
	"github.com/TheAJArchit3020/speech-analyzer/internal/mic"
	"github.com/TheAJArchit3020/speech-analyzer/internal/observe"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listDevices := flag.Bool("list-devices", false, "list capture devices and exit")
	flag.Parse()

	if *listDevices {
		return printDevices()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "speech-analyzer: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "speech-analyzer: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("speech-analyzer starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(cfg,
		app.WithLogLevel(level),
		app.WithFrameSink(&frameLogSink{}),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, application.ApplyConfig)
	if err != nil {
		slog.Error("failed to watch config file", "err", err)
		return 1
	}
	defer watcher.Stop()

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// frameLogSink stands in for the transcription engine: it consumes frames
// through the same interface and logs a running total every 10 seconds of
// audio.
type frameLogSink struct {
	frames atomic.Int64
}

func (s *frameLogSink) OnPcmFrame(samples []int16) {
	if n := s.frames.Add(1); n%100 == 0 {
		slog.Debug("pcm frames delivered", "frames", n, "samples_per_frame", len(samples))
	}
}

// printDevices enumerates capture devices through the default backend.
func printDevices() int {
	devices, err := mic.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "speech-analyzer: list devices: %v\n", err)
		return 1
	}
	for _, d := range devices {
		fmt.Printf("%s\t%s\n", d.ID, d.Label)
	}
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║     speech-analyzer — capture setup   ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Backend", string(cfg.Capture.Backend))
	printField("Mic device", cfg.Capture.Mic.Label)
	printField("Native rate", fmt.Sprintf("%d Hz", cfg.Capture.NativeRate()))
	printField("Target rate", fmt.Sprintf("%d Hz", cfg.Capture.TargetRate()))
	printField("Frame", cfg.Capture.FrameDuration().String())
	if cfg.Capture.Loopback.Enabled {
		printField("Loopback", "enabled")
	} else {
		printField("Loopback", "(disabled)")
	}
	printField("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if value == "" {
		value = "(default)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", name, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
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
