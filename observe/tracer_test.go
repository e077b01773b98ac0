package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordingTracer() (*tracetest.SpanRecorder, Tracer) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return recorder, NewTracer(tp.Tracer("test"))
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestArtifactMeta_SpanName(t *testing.T) {
	meta := ArtifactMeta{Kind: "soil"}
	if got := meta.SpanName(OpResolve); got != "artifact.resolve.soil" {
		t.Errorf("expected artifact.resolve.soil, got %q", got)
	}
	if got := meta.SpanName(OpGenerate); got != "artifact.generate.soil" {
		t.Errorf("expected artifact.generate.soil, got %q", got)
	}
}

func TestArtifactMeta_Validate(t *testing.T) {
	if err := (ArtifactMeta{}).Validate(); !errors.Is(err, ErrMissingKind) {
		t.Errorf("expected ErrMissingKind, got %v", err)
	}
	if err := (ArtifactMeta{Kind: "pest"}).Validate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

// TestTracer_SpanAttributes verifies request attributes are present on span.
func TestTracer_SpanAttributes(t *testing.T) {
	recorder, tr := newRecordingTracer()
	meta := ArtifactMeta{
		Kind:       "stage",
		Location:   "Nashik",
		Crop:       "grape",
		SowingDate: "2024-01-10",
		RunID:      "run-7",
	}

	_, span := tr.StartSpan(context.Background(), OpResolve, meta)
	tr.MarkTier(span, TierStore)
	tr.EndSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "artifact.resolve.stage" {
		t.Errorf("expected span name artifact.resolve.stage, got %q", s.Name())
	}

	m := attrMap(s.Attributes())
	want := map[string]string{
		"artifact.kind":        "stage",
		"artifact.location":    "Nashik",
		"artifact.crop":        "grape",
		"artifact.sowing_date": "2024-01-10",
		"run.id":               "run-7",
		"artifact.tier":        "store",
	}
	for k, v := range want {
		if got, ok := m[k]; !ok || got.AsString() != v {
			t.Errorf("expected %s=%q, got %v", k, v, got)
		}
	}
	if v := m["artifact.error"]; v.AsBool() {
		t.Error("expected artifact.error=false")
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", s.Status().Code)
	}
}

// TestTracer_SpanAttributesMinimal verifies empty request fields are omitted.
func TestTracer_SpanAttributesMinimal(t *testing.T) {
	recorder, tr := newRecordingTracer()

	_, span := tr.StartSpan(context.Background(), OpGenerate, ArtifactMeta{Kind: "water"})
	tr.EndSpan(span, nil)

	m := attrMap(recorder.Ended()[0].Attributes())
	for _, k := range []string{"artifact.location", "artifact.crop", "artifact.sowing_date", "run.id"} {
		if _, ok := m[k]; ok {
			t.Errorf("expected %s omitted", k)
		}
	}
}

// TestTracer_ContextPropagation verifies child spans inherit the parent.
func TestTracer_ContextPropagation(t *testing.T) {
	recorder, tr := newRecordingTracer()

	ctx, parent := tr.StartSpan(context.Background(), OpResolve, ArtifactMeta{Kind: "nutrient"})
	_, child := tr.StartSpan(ctx, OpResolve, ArtifactMeta{Kind: "soil"})
	tr.EndSpan(child, nil)
	tr.EndSpan(parent, nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	childSpan, parentSpan := spans[0], spans[1]
	if childSpan.Parent().SpanID() != parentSpan.SpanContext().SpanID() {
		t.Error("expected child span parented to resolve span")
	}
	if childSpan.SpanContext().TraceID() != parentSpan.SpanContext().TraceID() {
		t.Error("expected shared trace id")
	}
}

// TestTracer_ErrorRecording verifies errors set status and the error attribute.
func TestTracer_ErrorRecording(t *testing.T) {
	recorder, tr := newRecordingTracer()

	_, span := tr.StartSpan(context.Background(), OpGenerate, ArtifactMeta{Kind: "pest"})
	tr.EndSpan(span, errors.New("model unavailable"))

	s := recorder.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("expected Error status, got %v", s.Status().Code)
	}
	if s.Status().Description != "model unavailable" {
		t.Errorf("expected status description, got %q", s.Status().Description)
	}
	if !attrMap(s.Attributes())["artifact.error"].AsBool() {
		t.Error("expected artifact.error=true")
	}
	if len(s.Events()) == 0 {
		t.Error("expected an exception event")
	}
}

// TestNoopTracer_Inert verifies the no-op tracer yields non-recording spans.
func TestNoopTracer_Inert(t *testing.T) {
	tr := NoopTracer()
	ctx, span := tr.StartSpan(context.Background(), OpResolve, ArtifactMeta{Kind: "soil"})
	tr.MarkTier(span, TierScope)
	tr.EndSpan(span, errors.New("ignored"))

	if span.IsRecording() {
		t.Error("expected non-recording span")
	}
	if trace.SpanFromContext(ctx).SpanContext().IsValid() {
		t.Error("expected invalid span context")
	}
}
