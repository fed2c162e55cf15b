// Package observability holds the OpenTelemetry tracer and Prometheus
// instruments used across the gradebook.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/stepup/gradebook"

// Tracer provides OpenTelemetry spans for gradebook operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer on the global provider. Spans are no-ops
// until a provider is installed (see SetupTracing).
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// NewTracerFromProvider creates a tracer on an explicit provider.
func NewTracerFromProvider(tp trace.TracerProvider) *Tracer {
	return &Tracer{
		tracer: tp.Tracer(tracerName),
	}
}

// StartCommandSpan starts a span for a state-changing operation.
func (t *Tracer) StartCommandSpan(ctx context.Context, command string, studentID int64) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("gradebook.command", command)}
	if studentID > 0 {
		attrs = append(attrs, attribute.Int64("gradebook.student_id", studentID))
	}
	return t.tracer.Start(ctx, "gradebook.command."+command, trace.WithAttributes(attrs...))
}

// StartQuerySpan starts a span for a read operation.
func (t *Tracer) StartQuerySpan(ctx context.Context, query string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "gradebook.query."+query,
		trace.WithAttributes(attribute.String("gradebook.query", query)),
	)
}

// StartOracleSpan starts a client span for a grade service call.
func (t *Tracer) StartOracleSpan(ctx context.Context, op, url string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "gradebook.oracle."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gradebook.oracle.op", op),
			attribute.String("url.full", url),
		),
	)
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
