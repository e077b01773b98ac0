package generate

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/observe"
)

func recordingMiddleware() (*tracetest.SpanRecorder, *observe.Middleware) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return recorder, observe.NewMiddleware(observe.NewTracer(tp.Tracer("test")), nil, nil)
}

func TestInstrument_RecordsGenerateSpan(t *testing.T) {
	recorder, mw := recordingMiddleware()
	g := Instrument(Func(func(context.Context, Request) (string, error) {
		return "plan", nil
	}), mw)

	req := Request{
		Kind:  artifact.KindStage,
		Key:   artifact.RequestKey{Location: "Pune", CropName: "wheat", SowingDate: "2024-11-01"},
		RunID: "run-1",
	}
	got, err := g.Generate(context.Background(), req)
	if err != nil || got != "plan" {
		t.Fatalf("expected plan, got %q, %v", got, err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "artifact.generate.stage" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}
	found := false
	for _, a := range spans[0].Attributes() {
		if a.Key == attribute.Key("run.id") && a.Value.AsString() == "run-1" {
			found = true
		}
	}
	if !found {
		t.Error("expected run.id attribute")
	}
}

func TestInstrument_ErrorPropagates(t *testing.T) {
	recorder, mw := recordingMiddleware()
	cause := Wrap(artifact.KindSoil, errors.New("x"))
	g := Instrument(Func(func(context.Context, Request) (string, error) {
		return "", cause
	}), mw)

	_, err := g.Generate(context.Background(), Request{Kind: artifact.KindSoil})
	if err != cause {
		t.Fatalf("expected error unchanged, got %v", err)
	}
	if recorder.Ended()[0].Status().Code != codes.Error {
		t.Error("expected error status")
	}
}

func TestInstrument_NilMiddleware(t *testing.T) {
	inner := Func(func(context.Context, Request) (string, error) { return "", nil })
	if Instrument(inner, nil) == nil {
		t.Fatal("expected passthrough generator")
	}
}

func TestMetaFor(t *testing.T) {
	meta := MetaFor(artifact.KindPest, artifact.RequestKey{Location: "a", CropName: "b", SowingDate: "c"}, "r")
	want := observe.ArtifactMeta{Kind: "pest", Location: "a", Crop: "b", SowingDate: "c", RunID: "r"}
	if meta != want {
		t.Errorf("got %+v, want %+v", meta, want)
	}
}
