package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/cache"
	"github.com/jonwraymond/cropadvisor/generate"
	"github.com/jonwraymond/cropadvisor/observe"
	"github.com/jonwraymond/cropadvisor/stage"
)

// StepAdvisory names the run step of a full advisory.
const StepAdvisory = "advisory"

// AdvisoryKinds lists the artifacts a full advisory resolves, in order.
// Water is resolved as a dependency of stage.
var AdvisoryKinds = []artifact.Kind{
	artifact.KindSoil,
	artifact.KindWeather,
	artifact.KindStage,
	artifact.KindNutrient,
	artifact.KindPest,
	artifact.KindDisease,
	artifact.KindIrrigation,
}

// RunStore records pipeline invocations and what they produced.
type RunStore interface {
	CreateRun(ctx context.Context, run artifact.Run) (string, error)
	ListRuns(ctx context.Context, limit int) ([]artifact.Run, error)

	// SaveMerge stores a merge result. Lookups never return it.
	SaveMerge(ctx context.Context, m artifact.Merge) (string, error)

	// RunSnapshot returns artifact.ErrRunNotFound for an unknown id.
	RunSnapshot(ctx context.Context, id string) (artifact.Snapshot, error)
}

// Request is one pipeline invocation.
type Request struct {
	Key artifact.RequestKey

	// Seed pre-populates the request scope. Values that are not records are
	// normalized to records without an id.
	Seed map[artifact.Kind]any
}

// StepResult is the outcome of a single step.
type StepResult struct {
	RunID  string
	Record artifact.Record

	// Stage is today's current stage, recomputed from the resolved stage
	// plan. Nil when the step does not involve the stage artifact.
	Stage *stage.Result
}

// Advisory is the outcome of a full advisory run.
type Advisory struct {
	RunID   string
	Records map[artifact.Kind]artifact.Record
	Stage   stage.Result
	Merged  string

	// MergeID is the stored merge row. Empty without a run store or when
	// saving failed.
	MergeID string
}

// Coordinator runs advisory steps.
type Coordinator struct {
	resolver *cache.Resolver
	gens     generate.Set
	merge    generate.Generator
	runs     RunStore
	pruner   cache.Pruner
	logger   observe.Logger
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMerge sets the generator for the final merge step.
func WithMerge(g generate.Generator) Option {
	return func(c *Coordinator) {
		c.merge = g
	}
}

// WithRunStore records every invocation in rs.
func WithRunStore(rs RunStore) Option {
	return func(c *Coordinator) {
		c.runs = rs
	}
}

// WithPruner enables Prune.
func WithPruner(p cache.Pruner) Option {
	return func(c *Coordinator) {
		c.pruner = p
	}
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source used for run timestamps and stage
// computations.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Coordinator. The stage generator in gens, if any, is wrapped
// with AnnotateStage. A nil resolver resolves without a persistent store.
func New(resolver *cache.Resolver, gens generate.Set, opts ...Option) *Coordinator {
	c := &Coordinator{
		resolver: resolver,
		logger:   observe.NoopLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.resolver == nil {
		c.resolver = cache.NewResolver(nil, cache.WithLogger(c.logger), cache.WithClock(c.now))
	}
	c.gens = gens.Wrap(func(kind artifact.Kind, g generate.Generator) generate.Generator {
		if kind == artifact.KindStage && g != nil {
			return AnnotateStage(g, c.now, c.logger)
		}
		return g
	})
	return c
}

// Step resolves one artifact kind in a fresh scope.
func (c *Coordinator) Step(ctx context.Context, kind artifact.Kind, req Request) (StepResult, error) {
	if err := req.Key.Validate(kind); err != nil {
		return StepResult{}, err
	}
	withStage := kind == artifact.KindStage || kind.DependsOn(artifact.KindStage)
	if withStage && req.Key.SowingDate == "" {
		return StepResult{}, artifact.ErrSowingDateRequired
	}

	scope := c.begin(ctx, kind.String(), req)
	rec, err := c.resolver.Resolve(ctx, scope, kind, req.Key, c.gens)
	if err != nil {
		return StepResult{RunID: scope.RunID()}, err
	}

	result := StepResult{RunID: scope.RunID(), Record: rec}
	if withStage {
		current := c.currentStage(ctx, scope, req.Key)
		result.Stage = &current
	}
	return result, nil
}

// Advise resolves every advisory artifact in one scope and merges them.
func (c *Coordinator) Advise(ctx context.Context, req Request) (Advisory, error) {
	if c.merge == nil {
		return Advisory{}, ErrNoMergeGenerator
	}
	if err := req.Key.Validate(artifact.KindStage); err != nil {
		return Advisory{}, err
	}

	scope := c.begin(ctx, StepAdvisory, req)
	out := Advisory{
		RunID:   scope.RunID(),
		Records: make(map[artifact.Kind]artifact.Record, len(AdvisoryKinds)),
	}

	deps := make(map[artifact.Kind]string, len(AdvisoryKinds))
	for _, kind := range AdvisoryKinds {
		rec, err := c.resolver.Resolve(ctx, scope, kind, req.Key, c.gens)
		if err != nil {
			return out, err
		}
		out.Records[kind] = rec
		deps[kind] = rec.Payload
	}
	out.Stage = c.currentStage(ctx, scope, req.Key)

	merged, err := c.merge.Generate(ctx, generate.Request{
		Kind:         artifact.KindMerge,
		Key:          req.Key,
		Dependencies: deps,
		RunID:        scope.RunID(),
	})
	if err != nil {
		return out, generate.Wrap(artifact.KindMerge, err)
	}
	out.Merged = merged
	out.MergeID = c.saveMerge(ctx, scope.RunID(), req.Key, merged)
	return out, nil
}

// Snapshot returns what the run with id produced.
func (c *Coordinator) Snapshot(ctx context.Context, id string) (artifact.Snapshot, error) {
	if c.runs == nil {
		return artifact.Snapshot{}, ErrNoRunStore
	}
	if id == "" {
		return artifact.Snapshot{}, fmt.Errorf("%w: empty run id", artifact.ErrRunNotFound)
	}
	return c.runs.RunSnapshot(ctx, id)
}

// Runs lists up to limit recorded runs, newest first.
func (c *Coordinator) Runs(ctx context.Context, limit int) ([]artifact.Run, error) {
	if c.runs == nil {
		return nil, ErrNoRunStore
	}
	return c.runs.ListRuns(ctx, limit)
}

// Prune deletes stored artifacts older than olderThan.
func (c *Coordinator) Prune(ctx context.Context, olderThan time.Duration) (map[artifact.Kind]int64, error) {
	if c.pruner == nil {
		return nil, ErrPruneUnsupported
	}
	if olderThan <= 0 {
		return nil, ErrInvalidRetention
	}
	cutoff := c.now().UTC().Add(-olderThan)
	deleted, err := c.pruner.Prune(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}
	var total int64
	for _, n := range deleted {
		total += n
	}
	c.logger.Info(ctx, "pruned artifacts",
		observe.Field{Key: "cutoff", Value: cutoff.Format(time.RFC3339)},
		observe.Field{Key: "deleted", Value: total},
	)
	return deleted, nil
}

// begin starts a run: a new run id, a recorded run and a fresh scope.
// Failing to record the run is logged and does not stop the invocation.
func (c *Coordinator) begin(ctx context.Context, step string, req Request) *artifact.Scope {
	runID := uuid.NewString()
	if c.runs != nil {
		if _, err := c.runs.CreateRun(ctx, artifact.Run{
			ID:        runID,
			Step:      step,
			Key:       req.Key,
			CreatedAt: c.now().UTC(),
		}); err != nil {
			c.logger.Warn(ctx, "run not recorded",
				observe.Field{Key: "run.id", Value: runID},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}

	scope := artifact.NewScope(runID)
	for kind, v := range req.Seed {
		scope.Seed(kind, v)
	}
	return scope
}

// saveMerge stores the merged advisory as run history. A failure is logged
// and the advisory is still returned.
func (c *Coordinator) saveMerge(ctx context.Context, runID string, key artifact.RequestKey, payload string) string {
	if c.runs == nil {
		return ""
	}
	id, err := c.runs.SaveMerge(ctx, artifact.Merge{
		RunID:     runID,
		Key:       key,
		Payload:   payload,
		CreatedAt: c.now().UTC(),
	})
	if err != nil {
		c.logger.Warn(ctx, "merge not recorded",
			observe.Field{Key: "run.id", Value: runID},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return ""
	}
	return id
}

func (c *Coordinator) currentStage(ctx context.Context, scope *artifact.Scope, key artifact.RequestKey) stage.Result {
	result, err := CurrentStage(scope.Payload(artifact.KindStage), key.SowingDate, c.now())
	if err != nil {
		c.logger.Warn(ctx, "stage plan could not be parsed",
			observe.Field{Key: "run.id", Value: scope.RunID()},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
	return result
}
