package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/auth"
	"github.com/jonwraymond/cropadvisor/cache"
	"github.com/jonwraymond/cropadvisor/config"
	"github.com/jonwraymond/cropadvisor/generate"
	"github.com/jonwraymond/cropadvisor/health"
	"github.com/jonwraymond/cropadvisor/observe"
	"github.com/jonwraymond/cropadvisor/pipeline"
	"github.com/jonwraymond/cropadvisor/resilience"
	"github.com/jonwraymond/cropadvisor/storage/sqlite"
)

// App is a fully wired cropadvisor.
type App struct {
	Config      config.Config
	Store       *sqlite.Store
	Observer    observe.Observer
	Logger      observe.Logger
	Coordinator *pipeline.Coordinator
	Health      *health.Aggregator
	Breaker     *resilience.CircuitBreaker
}

// Option adjusts wiring before the app is built.
type Option func(*options)

type options struct {
	logOut    io.Writer
	generator generate.Generator
	now       func() time.Time
}

// WithLogOutput sends structured logs to w. Default: os.Stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		o.logOut = w
	}
}

// WithGenerator replaces the chat generator for every kind and the merge
// step. Guards and instrumentation still apply.
func WithGenerator(g generate.Generator) Option {
	return func(o *options) {
		o.generator = g
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New builds an App from cfg. Close releases what it opened.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{logOut: os.Stderr, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	obsCfg := cfg.Observe()
	obsCfg.Logging.Writer = o.logOut
	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	in, err := observe.InstrumentsFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("instruments: %w", err)
	}
	logger := in.Logger

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = obs.Shutdown(ctx)
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	policy, err := cfg.Policy()
	if err != nil {
		_ = store.Close()
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	execCfg := cfg.Executor()
	execCfg.OnStateChange = func(from, to resilience.State) {
		logger.Warn(context.Background(), "generator circuit changed state",
			observe.Field{Key: "from", Value: from.String()},
			observe.Field{Key: "to", Value: to.String()},
		)
	}
	exec := resilience.NewExecutorFromConfig(execCfg)

	var gen generate.Generator = o.generator
	if gen == nil {
		chatCfg, err := cfg.Chat()
		if err != nil {
			_ = store.Close()
			_ = obs.Shutdown(ctx)
			return nil, fmt.Errorf("chat: %w", err)
		}
		gen = generate.NewChat(chatCfg)
	}
	mw := observe.NewMiddleware(in.Tracer, in.Metrics, in.Logger)

	gens := generate.Set{}
	for _, kind := range artifact.Kinds {
		gens[kind] = gen
	}
	gens = generate.InstrumentSet(generate.GuardSet(gens, exec), mw)
	merge := generate.Instrument(generate.NewGuard(gen, exec), mw)

	resolver := cache.NewResolver(store,
		cache.WithPolicy(policy),
		cache.WithInstruments(in),
		cache.WithClock(o.now),
	)
	coord := pipeline.New(resolver, gens,
		pipeline.WithMerge(merge),
		pipeline.WithRunStore(store),
		pipeline.WithPruner(store),
		pipeline.WithLogger(logger),
		pipeline.WithClock(o.now),
	)

	agg := health.NewAggregator(0)
	agg.Register("store", health.StoreChecker(store))
	agg.Register("generator", health.CircuitChecker(exec.CircuitBreaker()))

	return &App{
		Config:      cfg,
		Store:       store,
		Observer:    obs,
		Logger:      logger,
		Coordinator: coord,
		Health:      agg,
		Breaker:     exec.CircuitBreaker(),
	}, nil
}

// Authenticator returns the HTTP authenticator the config asks for: API
// keys and JWT chained, or open access when neither is configured.
func (a *App) Authenticator() auth.Authenticator {
	if !a.Config.AuthEnabled() {
		return auth.Open()
	}
	var chain []auth.Authenticator
	if len(a.Config.APIKeys) > 0 || len(a.Config.AdminAPIKeys) > 0 {
		chain = append(chain, auth.NewAPIKeyAuthenticator(
			auth.StaticKeys(a.Config.APIKeys, a.Config.AdminAPIKeys)))
	}
	if a.Config.JWTSecret != "" {
		chain = append(chain, auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:   []byte(a.Config.JWTSecret),
			Issuer:   a.Config.JWTIssuer,
			Audience: a.Config.JWTAudience,
		}))
	}
	return auth.NewChain(chain...)
}

// Close flushes telemetry and closes the store.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Observer.Shutdown(ctx), a.Store.Close())
}
