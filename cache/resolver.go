package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/generate"
	"github.com/jonwraymond/cropadvisor/observe"
)

// Resolver implements the three-tier resolution cache.
//
// Contract:
// - Concurrency: safe for concurrent use across scopes.
// - Errors: only generator failures, missing generators, invalid keys and a
//   nil scope are returned. Store failures are logged and absorbed.
// - Ownership: Resolve writes only to the scope it is given.
type Resolver struct {
	store   Store
	policy  Policy
	keyer   Keyer
	tracer  observe.Tracer
	metrics observe.Metrics
	logger  observe.Logger
	now     func() time.Time

	inflight singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPolicy sets the max-age policy. Default: DefaultPolicy().
func WithPolicy(p Policy) Option {
	return func(r *Resolver) {
		r.policy = p
	}
}

// WithKeyer sets the in-flight keyer. Default: DefaultKeyer.
func WithKeyer(k Keyer) Option {
	return func(r *Resolver) {
		if k != nil {
			r.keyer = k
		}
	}
}

// WithInstruments sets tracer, metrics and logger together.
func WithInstruments(in observe.Instruments) Option {
	return func(r *Resolver) {
		if in.Tracer != nil {
			r.tracer = in.Tracer
		}
		if in.Metrics != nil {
			r.metrics = in.Metrics
		}
		if in.Logger != nil {
			r.logger = in.Logger
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the time source used for max-age cutoffs and CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver creates a Resolver over store. A nil store disables the
// persistent tier: lookups always miss and nothing is persisted.
func NewResolver(store Store, opts ...Option) *Resolver {
	in := observe.NoopInstruments()
	r := &Resolver{
		store:   store,
		policy:  DefaultPolicy(),
		keyer:   NewDefaultKeyer(),
		tracer:  in.Tracer,
		metrics: in.Metrics,
		logger:  in.Logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the resolver's max-age policy.
func (r *Resolver) Policy() Policy {
	return r.policy
}

type outcome struct {
	rec  artifact.Record
	tier observe.Tier
}

// Resolve returns the record for kind and key, consulting scope, then the
// store, then the kind's generator in gens. Dependencies are resolved through
// Resolve first, so they land in scope too.
func (r *Resolver) Resolve(ctx context.Context, scope *artifact.Scope, kind artifact.Kind, key artifact.RequestKey, gens generate.Set) (artifact.Record, error) {
	if scope == nil {
		return artifact.Record{}, ErrNilScope
	}
	if err := key.Validate(kind); err != nil {
		return artifact.Record{}, err
	}

	meta := generate.MetaFor(kind, key, scope.RunID())
	ctx, span := r.tracer.StartSpan(ctx, observe.OpResolve, meta)

	out, err := r.resolve(ctx, scope, kind, key, gens, meta)
	if err == nil {
		r.tracer.MarkTier(span, out.tier)
	}
	r.tracer.EndSpan(span, err)
	r.metrics.RecordResolve(ctx, meta, out.tier, err)

	if err != nil {
		return artifact.Record{}, err
	}
	return out.rec, nil
}

func (r *Resolver) resolve(ctx context.Context, scope *artifact.Scope, kind artifact.Kind, key artifact.RequestKey, gens generate.Set, meta observe.ArtifactMeta) (outcome, error) {
	// Tier 1
	if rec, ok := scope.Get(kind); ok {
		return outcome{rec: rec, tier: observe.TierScope}, nil
	}

	out, err := r.shared(ctx, scope, kind, key, gens, meta)
	if err != nil {
		return outcome{}, err
	}

	scope.Put(kind, out.rec)
	r.logger.WithArtifact(meta).Debug(ctx, "artifact resolved",
		observe.Field{Key: "artifact.tier", Value: string(out.tier)},
		observe.Field{Key: "artifact.id", Value: out.rec.ID},
	)
	return out, nil
}

// shared runs tiers 2 and 3 once per (kind, key) across concurrent scopes.
// The flight is detached from every caller's cancellation, so one caller
// giving up cannot fail the others; each caller still stops waiting when
// its own ctx ends. The generator guard's timeout bounds the detached work.
func (r *Resolver) shared(ctx context.Context, scope *artifact.Scope, kind artifact.Kind, key artifact.RequestKey, gens generate.Set, meta observe.ArtifactMeta) (outcome, error) {
	flightKey, err := r.keyer.Key(kind, key)
	if err != nil {
		return r.fetch(ctx, scope, kind, key, gens, meta)
	}

	detached := context.WithoutCancel(ctx)
	ch := r.inflight.DoChan(flightKey, func() (any, error) {
		return r.fetch(detached, scope, kind, key, gens, meta)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return outcome{}, res.Err
		}
		return res.Val.(outcome), nil
	case <-ctx.Done():
		return outcome{}, fmt.Errorf("resolve %s: %w", kind, context.Cause(ctx))
	}
}

// fetch runs tiers 2 and 3.
func (r *Resolver) fetch(ctx context.Context, scope *artifact.Scope, kind artifact.Kind, key artifact.RequestKey, gens generate.Set, meta observe.ArtifactMeta) (outcome, error) {
	if rec, ok := r.lookup(ctx, kind, key, meta); ok {
		return outcome{rec: rec, tier: observe.TierStore}, nil
	}

	gen, ok := gens.Lookup(kind)
	if !ok {
		return outcome{}, fmt.Errorf("%w: %s", ErrNoGenerator, kind)
	}

	deps := kind.Dependencies()
	req := generate.Request{
		Kind:         kind,
		Key:          key,
		Dependencies: make(map[artifact.Kind]string, len(deps)),
		RunID:        scope.RunID(),
	}
	var depIDs map[artifact.Kind]string
	for _, dep := range deps {
		rec, err := r.Resolve(ctx, scope, dep, key, gens)
		if err != nil {
			return outcome{}, generate.Wrap(kind, fmt.Errorf("dependency %s: %w", dep, err))
		}
		req.Dependencies[dep] = rec.Payload
		if rec.Persisted() {
			if depIDs == nil {
				depIDs = make(map[artifact.Kind]string, len(deps))
			}
			depIDs[dep] = rec.ID
		}
	}

	payload, err := gen.Generate(ctx, req)
	if err != nil {
		err = generate.Wrap(kind, err)
		r.logger.WithArtifact(meta).Error(ctx, "artifact generation failed",
			observe.Field{Key: "error", Value: err.Error()},
		)
		return outcome{}, err
	}

	rec := artifact.Record{
		Kind:          kind,
		Key:           key,
		Payload:       payload,
		DependencyIDs: depIDs,
		RunID:         scope.RunID(),
		CreatedAt:     r.now().UTC(),
	}
	rec.ID = r.persist(ctx, rec, meta)
	return outcome{rec: rec, tier: observe.TierGenerate}, nil
}

// lookup is tier 2. Failures count as misses.
func (r *Resolver) lookup(ctx context.Context, kind artifact.Kind, key artifact.RequestKey, meta observe.ArtifactMeta) (artifact.Record, bool) {
	if r.store == nil {
		return artifact.Record{}, false
	}
	since, ok := r.policy.Since(kind, r.now())
	if !ok {
		return artifact.Record{}, false
	}

	rec, found, err := r.store.QueryLatest(ctx, QueryFor(kind, key, since))
	if err != nil {
		r.metrics.RecordStorageError(ctx, meta, "lookup")
		r.logger.WithArtifact(meta).Warn(ctx, "artifact lookup failed, generating instead",
			observe.Field{Key: "error", Value: fmt.Errorf("%w: %v", ErrStorageUnavailable, err).Error()},
		)
		return artifact.Record{}, false
	}
	return rec, found
}

// persist inserts rec and returns its id, or "" when the insert failed.
func (r *Resolver) persist(ctx context.Context, rec artifact.Record, meta observe.ArtifactMeta) string {
	if r.store == nil {
		return ""
	}
	id, err := r.store.Insert(ctx, rec)
	if err != nil {
		r.metrics.RecordStorageError(ctx, meta, "insert")
		r.logger.WithArtifact(meta).Warn(ctx, "artifact persist failed, keeping it in scope only",
			observe.Field{Key: "error", Value: fmt.Errorf("%w: %v", ErrStorageUnavailable, err).Error()},
		)
		return ""
	}
	return id
}
