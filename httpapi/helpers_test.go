package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/auth"
	"github.com/jonwraymond/cropadvisor/cache"
	"github.com/jonwraymond/cropadvisor/generate"
	"github.com/jonwraymond/cropadvisor/pipeline"
)

var testNow = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

const stagePlan = `Stage 1: Germination
Start Date: 2024-11-01
End Date: 2024-11-20

Stage 2: Tillering
Start Date: 2024-11-21
End Date: 2025-01-31
`

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	store  *cache.MemoryStore
	clock  *testClock
	fail   map[artifact.Kind]error
	server *Server
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	env := &testEnv{
		store: cache.NewMemoryStore(),
		clock: &testClock{now: testNow},
		fail:  make(map[artifact.Kind]error),
	}
	gen := func(kind artifact.Kind) generate.Generator {
		return generate.Func(func(_ context.Context, req generate.Request) (string, error) {
			if err := env.fail[kind]; err != nil {
				return "", err
			}
			switch kind {
			case artifact.KindStage:
				return stagePlan, nil
			case artifact.KindMerge:
				return "merged advisory for " + req.Key.CropName, nil
			}
			return string(kind) + " advice", nil
		})
	}
	gens := generate.Set{}
	for _, kind := range artifact.Kinds {
		gens[kind] = gen(kind)
	}

	resolver := cache.NewResolver(env.store, cache.WithClock(env.clock.Now))
	coord := pipeline.New(resolver, gens,
		pipeline.WithClock(env.clock.Now),
		pipeline.WithMerge(gen(artifact.KindMerge)),
		pipeline.WithRunStore(env.store),
		pipeline.WithPruner(env.store),
	)
	if opts.Clock == nil {
		opts.Clock = env.clock.Now
	}
	env.server = NewServer(":0", coord, opts)
	return env
}

// do sends a request with an optional JSON body and API key.
func (e *testEnv) do(t *testing.T, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set(auth.APIKeyHeader, apiKey)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

var wheatKey = KeyRequest{Location: "Pune", CropName: "wheat", SowingDate: "2024-11-01"}
