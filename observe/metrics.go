package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records resolution and generation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordResolve records one resolve call and the tier that answered it.
	RecordResolve(ctx context.Context, meta ArtifactMeta, tier Tier, err error)

	// RecordGeneration records one generator call with duration and error status.
	RecordGeneration(ctx context.Context, meta ArtifactMeta, duration time.Duration, err error)

	// RecordStorageError records a swallowed persistent-store failure.
	// op is "lookup" or "insert".
	RecordStorageError(ctx context.Context, meta ArtifactMeta, op string)
}

type metricsImpl struct {
	resolveTotal   metric.Int64Counter
	resolveErrors  metric.Int64Counter
	generateTotal  metric.Int64Counter
	generateErrors metric.Int64Counter
	generateHist   metric.Float64Histogram
	storageErrors  metric.Int64Counter
}

// NewMetrics creates a Metrics instance with instruments on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	resolveTotal, err := meter.Int64Counter(
		"artifact.resolve.total",
		metric.WithDescription("Total number of artifact resolutions by answering tier"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	resolveErrors, err := meter.Int64Counter(
		"artifact.resolve.errors",
		metric.WithDescription("Total number of failed artifact resolutions"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	generateTotal, err := meter.Int64Counter(
		"artifact.generate.total",
		metric.WithDescription("Total number of generator calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	generateErrors, err := meter.Int64Counter(
		"artifact.generate.errors",
		metric.WithDescription("Total number of failed generator calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	generateHist, err := meter.Float64Histogram(
		"artifact.generate.duration_ms",
		metric.WithDescription("Generator call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	storageErrors, err := meter.Int64Counter(
		"artifact.storage.errors",
		metric.WithDescription("Persistent store failures absorbed by the resolver"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		resolveTotal:   resolveTotal,
		resolveErrors:  resolveErrors,
		generateTotal:  generateTotal,
		generateErrors: generateErrors,
		generateHist:   generateHist,
		storageErrors:  storageErrors,
	}, nil
}

func kindAttrs(meta ArtifactMeta) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("artifact.kind", meta.Kind)}
}

func (m *metricsImpl) RecordResolve(ctx context.Context, meta ArtifactMeta, tier Tier, err error) {
	attrs := kindAttrs(meta)
	if err != nil {
		m.resolveErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
		return
	}
	attrs = append(attrs, attribute.String("artifact.tier", string(tier)))
	m.resolveTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordGeneration(ctx context.Context, meta ArtifactMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(kindAttrs(meta)...)

	m.generateTotal.Add(ctx, 1, opt)
	if err != nil {
		m.generateErrors.Add(ctx, 1, opt)
	}
	m.generateHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordStorageError(ctx context.Context, meta ArtifactMeta, op string) {
	attrs := append(kindAttrs(meta), attribute.String("storage.op", op))
	m.storageErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

type noopMetrics struct{}

// NoopMetrics returns a Metrics that records nothing.
func NoopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordResolve(context.Context, ArtifactMeta, Tier, error) {}

func (noopMetrics) RecordGeneration(context.Context, ArtifactMeta, time.Duration, error) {}

func (noopMetrics) RecordStorageError(context.Context, ArtifactMeta, string) {}
