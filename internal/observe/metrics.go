// Package observe provides application-wide observability primitives for
// the speech analyzer: OpenTelemetry metrics, distributed tracing,
// structured logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/TheAJArchit3020/speech-analyzer"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// PushDuration tracks how long one poll's worth of samples takes to
	// resample and encode. Use with attribute:
	//   attribute.String("source", ...)
	PushDuration metric.Float64Histogram

	// --- Counters ---

	// FramesEmitted counts PCM frames delivered to the application. Use
	// with attribute: attribute.String("source", ...)
	FramesEmitted metric.Int64Counter

	// LevelEvents counts audio level events delivered to the application.
	// Use with attribute: attribute.String("source", ...)
	LevelEvents metric.Int64Counter

	// DroppedSamples counts samples lost to ring overwrites or a stalled
	// consumer. Use with attribute: attribute.String("source", ...)
	DroppedSamples metric.Int64Counter

	// --- Error counters ---

	// CaptureErrors counts capture-path errors. Use with attributes:
	//   attribute.String("source", ...), attribute.String("kind", ...)
	CaptureErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live capture sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// pushBuckets defines histogram bucket boundaries (in seconds) for the
// per-poll processing path, which has to finish well inside one 10 ms poll
// interval.
var pushBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.PushDuration, err = m.Float64Histogram("speechanalyzer.capture.push.duration",
		metric.WithDescription("Latency of resampling and encoding one poll of samples."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(pushBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesEmitted, err = m.Int64Counter("speechanalyzer.capture.frames",
		metric.WithDescription("Total PCM frames emitted by source."),
	); err != nil {
		return nil, err
	}
	if met.LevelEvents, err = m.Int64Counter("speechanalyzer.capture.levels",
		metric.WithDescription("Total audio level events emitted by source."),
	); err != nil {
		return nil, err
	}
	if met.DroppedSamples, err = m.Int64Counter("speechanalyzer.capture.dropped_samples",
		metric.WithDescription("Total samples dropped before reaching the pipeline, by source."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.CaptureErrors, err = m.Int64Counter("speechanalyzer.capture.errors",
		metric.WithDescription("Total capture errors by source and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("speechanalyzer.active_sessions",
		metric.WithDescription("Number of live capture sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("speechanalyzer.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFrame records one emitted PCM frame for the given source.
func (m *Metrics) RecordFrame(ctx context.Context, source string) {
	m.FramesEmitted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordLevel records one emitted level event for the given source.
func (m *Metrics) RecordLevel(ctx context.Context, source string) {
	m.LevelEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordCaptureError records a capture error counter increment with the
// standard attribute set.
func (m *Metrics) RecordCaptureError(ctx context.Context, source, kind string) {
	m.CaptureErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("kind", kind),
		),
	)
}

// RecordPushDuration records the time one poll spent resampling and
// encoding samples for the given source.
func (m *Metrics) RecordPushDuration(ctx context.Context, source string, d time.Duration) {
	m.PushDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// AddDroppedSamples records samples lost before reaching the pipeline.
func (m *Metrics) AddDroppedSamples(ctx context.Context, source string, n int64) {
	m.DroppedSamples.Add(ctx, n,
		metric.WithAttributes(attribute.String("source", source)),
	)
}
