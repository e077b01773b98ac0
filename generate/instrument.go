package generate

import (
	"context"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/observe"
)

// MetaFor describes one artifact request for instrumentation.
func MetaFor(kind artifact.Kind, key artifact.RequestKey, runID string) observe.ArtifactMeta {
	return observe.ArtifactMeta{
		Kind:       string(kind),
		Location:   key.Location,
		Crop:       key.CropName,
		SowingDate: key.SowingDate,
		RunID:      runID,
	}
}

type instrumented struct {
	next Generator
	mw   *observe.Middleware
}

// Instrument records an artifact.generate.<kind> span, generation metrics
// and a log line around every call to next.
func Instrument(next Generator, mw *observe.Middleware) Generator {
	if mw == nil {
		return next
	}
	return &instrumented{next: next, mw: mw}
}

func (g *instrumented) Generate(ctx context.Context, req Request) (string, error) {
	call := g.mw.Wrap(func(ctx context.Context, _ observe.ArtifactMeta) (string, error) {
		return g.next.Generate(ctx, req)
	})
	return call(ctx, MetaFor(req.Kind, req.Key, req.RunID))
}

// InstrumentSet instruments every generator in s.
func InstrumentSet(s Set, mw *observe.Middleware) Set {
	return s.Wrap(func(_ artifact.Kind, g Generator) Generator {
		return Instrument(g, mw)
	})
}
