// Package observe provides application-wide observability primitives for
// voxcmd: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all voxcmd metrics.
const meterName = "github.com/MrWong99/voxcmd"

// Match outcomes recorded on [Metrics.MatchTotal].
const (
	OutcomeMatched = "matched"
	OutcomeMissing = "missing_entities"
	OutcomeNoMatch = "no_match"
	OutcomeInvalid = "invalid"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Matching ---

	// MatchDuration tracks the latency of a single Match call.
	MatchDuration metric.Float64Histogram

	// MatchTotal counts Match calls. Use with attribute:
	//   attribute.String("outcome", ...)
	MatchTotal metric.Int64Counter

	// MatchConfidence records the confidence of every returned match.
	MatchConfidence metric.Float64Histogram

	// --- Training ---

	// TrainingOperations counts training mutations. Use with attributes:
	//   attribute.String("op", ...), attribute.String("status", ...)
	TrainingOperations metric.Int64Counter

	// RecognitionTests counts testRecognition calls. Use with attributes:
	//   attribute.String("intent", ...), attribute.String("result", ...)
	RecognitionTests metric.Int64Counter

	// StoreErrors counts durable store failures. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("op", ...)
	StoreErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Matching
// is in-process so the interesting range is sub-millisecond to tens of ms.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

var confidenceBuckets = []float64{
	0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.MatchDuration, err = m.Float64Histogram("voxcmd.match.duration",
		metric.WithDescription("Latency of utterance matching."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MatchTotal, err = m.Int64Counter("voxcmd.match.total",
		metric.WithDescription("Total match calls by outcome."),
	); err != nil {
		return nil, err
	}
	if met.MatchConfidence, err = m.Float64Histogram("voxcmd.match.confidence",
		metric.WithDescription("Confidence of resolved matches."),
		metric.WithExplicitBucketBoundaries(confidenceBuckets...),
	); err != nil {
		return nil, err
	}

	if met.TrainingOperations, err = m.Int64Counter("voxcmd.training.operations",
		metric.WithDescription("Total training operations by op and status."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionTests, err = m.Int64Counter("voxcmd.training.tests",
		metric.WithDescription("Total recognition tests by intent and result."),
	); err != nil {
		return nil, err
	}
	if met.StoreErrors, err = m.Int64Counter("voxcmd.store.errors",
		metric.WithDescription("Total durable store errors by backend and op."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("voxcmd.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voxcmd.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
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

// RecordMatch records the duration, outcome and (for resolved matches)
// confidence of one Match call.
func (m *Metrics) RecordMatch(ctx context.Context, seconds float64, outcome string, confidence float64) {
	m.MatchDuration.Record(ctx, seconds)
	m.MatchTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if outcome == OutcomeMatched || outcome == OutcomeMissing {
		m.MatchConfidence.Record(ctx, confidence)
	}
}

// RecordTrainingOp records a training mutation counter increment.
func (m *Metrics) RecordTrainingOp(ctx context.Context, op, status string) {
	m.TrainingOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}

// RecordRecognitionTest records a recognition test counter increment.
func (m *Metrics) RecordRecognitionTest(ctx context.Context, intent string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.RecognitionTests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("intent", intent),
			attribute.String("result", result),
		),
	)
}

// RecordStoreError records a durable store error counter increment.
func (m *Metrics) RecordStoreError(ctx context.Context, backend, op string) {
	m.StoreErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("op", op),
		),
	)
}
