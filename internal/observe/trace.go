package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for voxcmd spans.
const tracerName = "github.com/MrWong99/voxcmd"

// Span attribute keys set on match spans.
const (
	AttrOutcome    = "voxcmd.outcome"
	AttrIntent     = "voxcmd.intent"
	AttrConfidence = "voxcmd.confidence"
)

// Tracer returns the voxcmd tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named name. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// AnnotateMatch records the result of one match on span. An empty intent is
// omitted.
func AnnotateMatch(span trace.Span, outcome, intent string, confidence float64) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrOutcome, outcome),
		attribute.Float64(AttrConfidence, confidence),
	}
	if intent != "" {
		attrs = append(attrs, attribute.String(AttrIntent, intent))
	}
	span.SetAttributes(attrs...)
}

// CorrelationID returns the trace ID carried by ctx, or "". HTTP responses
// echo it in X-Correlation-ID.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Logger returns the default logger, enriched with trace_id and span_id when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
