package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Operation names used in span names.
const (
	OpResolve  = "resolve"
	OpGenerate = "generate"
)

// Tracer wraps OpenTelemetry tracing with artifact-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an operation on an artifact.
	StartSpan(ctx context.Context, op string, meta ArtifactMeta) (context.Context, trace.Span)

	// MarkTier records which resolution tier answered.
	MarkTier(span trace.Span, tier Tier)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with artifact metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, op string, meta ArtifactMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("artifact.kind", meta.Kind),
		attribute.Bool("artifact.error", false),
	}
	if meta.Location != "" {
		attrs = append(attrs, attribute.String("artifact.location", meta.Location))
	}
	if meta.Crop != "" {
		attrs = append(attrs, attribute.String("artifact.crop", meta.Crop))
	}
	if meta.SowingDate != "" {
		attrs = append(attrs, attribute.String("artifact.sowing_date", meta.SowingDate))
	}
	if meta.RunID != "" {
		attrs = append(attrs, attribute.String("run.id", meta.RunID))
	}

	return t.tracer.Start(ctx, meta.SpanName(op),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// MarkTier sets the artifact.tier attribute.
func (t *tracerImpl) MarkTier(span trace.Span, tier Tier) {
	span.SetAttributes(attribute.String("artifact.tier", string(tier)))
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("artifact.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NoopTracer returns a tracer that records nothing.
func NoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, op string, meta ArtifactMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName(op))
}

func (t *noopTracer) MarkTier(trace.Span, Tier) {}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
