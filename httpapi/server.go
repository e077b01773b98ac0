package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/jonwraymond/cropadvisor/auth"
	"github.com/jonwraymond/cropadvisor/health"
	"github.com/jonwraymond/cropadvisor/observe"
	"github.com/jonwraymond/cropadvisor/pipeline"
)

// Options configures a Server. Zero values fall back to open access,
// role-based authorization, an empty health aggregator and a no-op logger.
type Options struct {
	Authenticator auth.Authenticator
	Authorizer    auth.Authorizer
	Health        *health.Aggregator
	Logger        observe.Logger
	Clock         func() time.Time

	// WriteTimeout bounds a whole request, generation included.
	// Default: 5 minutes
	WriteTimeout time.Duration
}

// Server is the HTTP server for the advisory API.
type Server struct {
	handler    http.Handler
	httpServer *http.Server
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, coord *pipeline.Coordinator, opts Options) *Server {
	if opts.Authenticator == nil {
		opts.Authenticator = auth.Open()
	}
	if opts.Authorizer == nil {
		opts.Authorizer = auth.NewRoleAuthorizer(nil)
	}
	if opts.Health == nil {
		opts.Health = health.NewAggregator(0)
	}
	if opts.Logger == nil {
		opts.Logger = observe.NoopLogger()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Minute
	}

	handlers := NewHandlers(coord, opts.Logger, opts.Clock)

	api := http.NewServeMux()
	route := func(pattern string, action auth.Action, h http.HandlerFunc) {
		api.Handle(pattern, auth.Require(opts.Authorizer, action, h))
	}
	route("POST /v1/steps/{kind}", auth.ActionStep, handlers.HandleStep)
	route("POST /v1/advisories", auth.ActionAdvise, handlers.HandleAdvise)
	route("POST /v1/stage/current", auth.ActionStage, handlers.HandleStage)
	route("GET /v1/runs", auth.ActionRuns, handlers.HandleRuns)
	route("GET /v1/runs/{id}", auth.ActionRuns, handlers.HandleRun)
	route("POST /v1/prune", auth.ActionPrune, handlers.HandlePrune)

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, opts.Health)
	mux.Handle("/v1/", auth.Middleware(opts.Authenticator, opts.Logger)(api))

	handler := logRequests(mux, opts.Logger)
	return &Server{
		handler: handler,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// graceful shutdown.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler, logger observe.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug(r.Context(), "http request",
			observe.Field{Key: "http.method", Value: r.Method},
			observe.Field{Key: "http.path", Value: r.URL.Path},
			observe.Field{Key: "http.status", Value: rec.status},
			observe.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
		)
	})
}
