// Package observe provides the application's observability primitives:
// OpenTelemetry metric instruments and the Prometheus exporter bridge that
// surfaces them on /metrics.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all quorum metrics.
const meterName = "github.com/quorumhq/quorum"

// Metrics holds every metric instrument the application records. All fields
// are safe for concurrent use — the OTel types synchronise internally.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ParseDuration tracks per-file transcript parsing latency.
	ParseDuration metric.Float64Histogram

	// EmbedDuration tracks embedding provider call latency.
	EmbedDuration metric.Float64Histogram

	// SearchDuration tracks child-index similarity search latency.
	SearchDuration metric.Float64Histogram

	// CompletionDuration tracks chat completion latency during panel runs.
	CompletionDuration metric.Float64Histogram

	// --- Counters ---

	// FilesParsed counts transcript files processed during ingest. Use with
	// attribute.String("status", "ok"|"error").
	FilesParsed metric.Int64Counter

	// ChunksIndexed counts chunks written to the corpus. Use with
	// attribute.String("level", "parent"|"child").
	ChunksIndexed metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors by provider and kind.
	ProviderErrors metric.Int64Counter
}

// latencyBuckets are histogram boundaries (seconds) sized for the span from
// an in-process parse (<10ms) to a slow remote completion (>10s).
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] using the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		inst *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.ParseDuration, "quorum.parse.duration", "Latency of parsing one transcript file."},
		{&met.EmbedDuration, "quorum.embed.duration", "Latency of embedding provider calls."},
		{&met.SearchDuration, "quorum.search.duration", "Latency of child-index similarity search."},
		{&met.CompletionDuration, "quorum.completion.duration", "Latency of chat completions."},
	}
	for _, h := range histograms {
		if *h.inst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}

	if met.FilesParsed, err = m.Int64Counter("quorum.files.parsed",
		metric.WithDescription("Transcript files processed during ingest, by status."),
	); err != nil {
		return nil, err
	}
	if met.ChunksIndexed, err = m.Int64Counter("quorum.chunks.indexed",
		metric.WithDescription("Chunks written to the corpus, by level."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("quorum.provider.requests",
		metric.WithDescription("Provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("quorum.provider.errors",
		metric.WithDescription("Provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], creating it on first
// call from [otel.GetMeterProvider]. Panics if instrument creation fails,
// which cannot happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordProviderRequest increments the request counter with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordProviderError increments the error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}
