package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/cache"
	"github.com/jonwraymond/cropadvisor/generate"
)

var (
	testNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	testKey = artifact.RequestKey{Location: "Pune", CropName: "wheat", SowingDate: "2024-11-01"}
)

const stagePlan = `Growth plan for wheat.

Stage 1: Germination
Start Date: 2024-11-01
End Date: 2024-11-20

Stage 2: Tillering
Start Date: 2024-11-21
End Date: 2025-01-31

CURRENT STAGE: Germination, about 10% done.

CRITICAL ALERTS:
- Frost expected late December.
`

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock {
	return &clock{now: t}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// fakeGens returns generators for every artifact kind, counting calls and
// capturing the last request per kind.
type fakeGens struct {
	mu    sync.Mutex
	calls map[artifact.Kind]int
	last  map[artifact.Kind]generate.Request
	fail  map[artifact.Kind]error
}

func newFakeGens() *fakeGens {
	return &fakeGens{
		calls: make(map[artifact.Kind]int),
		last:  make(map[artifact.Kind]generate.Request),
		fail:  make(map[artifact.Kind]error),
	}
}

func (f *fakeGens) generator(kind artifact.Kind) generate.Generator {
	return generate.Func(func(ctx context.Context, req generate.Request) (string, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls[kind]++
		f.last[kind] = req
		if err := f.fail[kind]; err != nil {
			return "", err
		}
		if kind == artifact.KindStage {
			return stagePlan, nil
		}
		return string(kind) + " advice", nil
	})
}

func (f *fakeGens) set() generate.Set {
	s := generate.Set{}
	for _, kind := range artifact.Kinds {
		s[kind] = f.generator(kind)
	}
	return s
}

func (f *fakeGens) merge() generate.Generator {
	return f.generator(artifact.KindMerge)
}

func (f *fakeGens) count(kind artifact.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeGens) request(kind artifact.Kind) generate.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last[kind]
}

// failingRuns rejects every run.
type failingRuns struct{}

func (failingRuns) CreateRun(context.Context, artifact.Run) (string, error) {
	return "", errors.New("disk full")
}

func (failingRuns) ListRuns(context.Context, int) ([]artifact.Run, error) {
	return nil, errors.New("disk full")
}

func (failingRuns) SaveMerge(context.Context, artifact.Merge) (string, error) {
	return "", errors.New("disk full")
}

func (failingRuns) RunSnapshot(context.Context, string) (artifact.Snapshot, error) {
	return artifact.Snapshot{}, errors.New("disk full")
}

func newTestCoordinator(store *cache.MemoryStore, gens *fakeGens, clk *clock, opts ...Option) *Coordinator {
	var s cache.Store
	if store != nil {
		s = store
	}
	resolver := cache.NewResolver(s, cache.WithClock(clk.Now))
	opts = append([]Option{WithClock(clk.Now), WithMerge(gens.merge())}, opts...)
	if store != nil {
		opts = append(opts, WithRunStore(store), WithPruner(store))
	}
	return New(resolver, gens.set(), opts...)
}
