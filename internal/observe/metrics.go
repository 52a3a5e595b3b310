// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, distributed tracing, structured logging, and HTTP
// middleware that ties them together.
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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/memoryengine"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// IngestDuration tracks end-to-end ingest latency (fingerprint +
	// routing + index writes).
	IngestDuration metric.Float64Histogram

	// QueryDuration tracks end-to-end retrieval latency.
	QueryDuration metric.Float64Histogram

	// QuantizationDuration tracks the latency of demoting a fingerprint to
	// a lower-precision representation.
	QuantizationDuration metric.Float64Histogram

	// SpaceSearchDuration tracks per-space ANN search latency. Use with
	// attribute: attribute.String("space", ...)
	SpaceSearchDuration metric.Float64Histogram

	// ToolExecutionDuration tracks MCP tool execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts external collaborator calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// BanditArmPulls counts arm selections made by the adaptive tuning
	// controller. Use with attributes:
	//   attribute.String("domain", ...), attribute.String("arm", ...)
	BanditArmPulls metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts collaborator errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ConsciousnessLevel tracks the global workspace's current broadcast
	// level (0-4, per the band classification) as it changes. Use with
	// attribute: attribute.String("domain", ...)
	ConsciousnessLevel metric.Float64Histogram

	// ActiveSessions tracks the number of live retrieval sessions.
	ActiveSessions metric.Int64UpDownCounter

	// CalibrationECE tracks the expected calibration error of confidence
	// scores against observed entailment outcomes. Use with attribute:
	//   attribute.String("domain", ...)
	CalibrationECE metric.Float64Histogram

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) suited to
// the sub-second latencies of in-process index and fingerprint operations.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.IngestDuration, err = m.Float64Histogram("memoryengine.ingest.duration",
		metric.WithDescription("Latency of ingesting a fingerprint into the memory spaces."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QueryDuration, err = m.Float64Histogram("memoryengine.query.duration",
		metric.WithDescription("Latency of a retrieval query across all searched spaces."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QuantizationDuration, err = m.Float64Histogram("memoryengine.quantization.duration",
		metric.WithDescription("Latency of demoting a fingerprint's precision tier."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpaceSearchDuration, err = m.Float64Histogram("memoryengine.space_search.duration",
		metric.WithDescription("Latency of a single memory space's ANN search, by space."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("memoryengine.tool_execution.duration",
		metric.WithDescription("Latency of MCP tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("memoryengine.provider.requests",
		metric.WithDescription("Total external collaborator requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("memoryengine.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.BanditArmPulls, err = m.Int64Counter("memoryengine.bandit.arm_pulls",
		metric.WithDescription("Total adaptive tuning controller arm selections by domain and arm."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("memoryengine.provider.errors",
		metric.WithDescription("Total external collaborator errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ConsciousnessLevel, err = m.Float64Histogram("memoryengine.consciousness.level",
		metric.WithDescription("Current global workspace broadcast band (0-4), by domain."),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 4),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("memoryengine.active_sessions",
		metric.WithDescription("Number of live retrieval sessions."),
	); err != nil {
		return nil, err
	}
	if met.CalibrationECE, err = m.Float64Histogram("memoryengine.calibration.ece",
		metric.WithDescription("Expected calibration error of confidence scores against observed entailment outcomes, by domain."),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.2, 0.3, 0.5),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("memoryengine.http.request.duration",
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordBanditArmPull is a convenience method that records an adaptive
// tuning controller arm selection.
func (m *Metrics) RecordBanditArmPull(ctx context.Context, domain, arm string) {
	m.BanditArmPulls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("domain", domain),
			attribute.String("arm", arm),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCalibrationECE is a convenience method that records a calibration
// error sample for a domain.
func (m *Metrics) RecordCalibrationECE(ctx context.Context, domain string, ece float64) {
	m.CalibrationECE.Record(ctx, ece,
		metric.WithAttributes(attribute.String("domain", domain)),
	)
}

// RecordConsciousnessLevel is a convenience method that records the global
// workspace's current broadcast band for a domain.
func (m *Metrics) RecordConsciousnessLevel(ctx context.Context, domain string, level float64) {
	m.ConsciousnessLevel.Record(ctx, level,
		metric.WithAttributes(attribute.String("domain", domain)),
	)
}
