package pipeline

import (
	"context"
	"time"

	"github.com/jonwraymond/cropadvisor/generate"
	"github.com/jonwraymond/cropadvisor/observe"
	"github.com/jonwraymond/cropadvisor/stage"
)

// stageAnnotator rewrites the current-stage section of generated stage plans.
type stageAnnotator struct {
	next   generate.Generator
	now    func() time.Time
	logger observe.Logger
}

// AnnotateStage wraps a stage generator so its output ends with a
// current-stage section computed from the plan's dates, replacing any
// section the generator wrote itself.
func AnnotateStage(next generate.Generator, now func() time.Time, logger observe.Logger) generate.Generator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = observe.NoopLogger()
	}
	return &stageAnnotator{next: next, now: now, logger: logger}
}

func (a *stageAnnotator) Generate(ctx context.Context, req generate.Request) (string, error) {
	text, err := a.next.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	annotated, result, perr := stage.Annotate(text, req.Key.SowingDate, a.now())
	if perr != nil {
		a.logger.WithArtifact(generate.MetaFor(req.Kind, req.Key, req.RunID)).Warn(ctx,
			"stage plan has malformed dates",
			observe.Field{Key: "error", Value: perr.Error()},
		)
	}
	a.logger.WithArtifact(generate.MetaFor(req.Kind, req.Key, req.RunID)).Debug(ctx,
		"stage plan annotated",
		observe.Field{Key: "stage.status", Value: result.Status.String()},
	)
	return annotated, nil
}

// CurrentStage recomputes the current stage of a stored stage payload for
// today. Any current-stage section in the payload is ignored.
func CurrentStage(payload, sowingDate string, today time.Time) (stage.Result, error) {
	return stage.Evaluate(stage.StripCurrentStage(payload), sowingDate, today)
}
