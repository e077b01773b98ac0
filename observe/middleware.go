package observe

import (
	"context"
	"time"
)

// GenerateFunc is the signature for artifact generation functions.
// This is the function signature that Middleware wraps.
type GenerateFunc func(ctx context.Context, meta ArtifactMeta) (string, error)

// Middleware wraps artifact generation with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe GenerateFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from wrapped function are recorded and propagated unchanged.
//   - Ownership: Payloads are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
// Nil components are replaced by no-op implementations.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NoopTracer()
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if logger == nil {
		logger = NoopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps a GenerateFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn GenerateFunc) GenerateFunc {
	return func(ctx context.Context, meta ArtifactMeta) (string, error) {
		ctx, span := m.tracer.StartSpan(ctx, OpGenerate, meta)

		start := time.Now()
		payload, err := fn(ctx, meta)
		duration := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordGeneration(ctx, meta, duration, err)

		log := m.logger.WithArtifact(meta)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			log.Error(ctx, "artifact generation failed", fields...)
		} else {
			fields = append(fields, Field{Key: "payload_bytes", Value: len(payload)})
			log.Info(ctx, "artifact generated", fields...)
		}

		return payload, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	in, err := InstrumentsFromObserver(obs)
	if err != nil {
		return nil, err
	}
	return NewMiddleware(in.Tracer, in.Metrics, in.Logger), nil
}
