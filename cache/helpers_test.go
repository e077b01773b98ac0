package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/generate"
)

var testNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

var testKey = artifact.RequestKey{Location: "Pune", CropName: "wheat", SowingDate: "2024-11-01"}

// countingGens generates "<kind>-<n>" payloads and records call order.
type countingGens struct {
	mu     sync.Mutex
	counts map[artifact.Kind]int
	order  []artifact.Kind
	reqs   map[artifact.Kind]generate.Request
	fail   map[artifact.Kind]error
}

func newCountingGens() *countingGens {
	return &countingGens{
		counts: make(map[artifact.Kind]int),
		reqs:   make(map[artifact.Kind]generate.Request),
		fail:   make(map[artifact.Kind]error),
	}
}

func (c *countingGens) set() generate.Set {
	s := generate.Set{}
	for _, k := range artifact.Kinds {
		kind := k
		s[kind] = generate.Func(func(ctx context.Context, req generate.Request) (string, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if err := c.fail[kind]; err != nil {
				return "", err
			}
			c.counts[kind]++
			c.order = append(c.order, kind)
			c.reqs[kind] = req
			return string(kind) + "-" + itoa(c.counts[kind]), nil
		})
	}
	return s
}

func (c *countingGens) count(k artifact.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[k]
}

func (c *countingGens) setFail(k artifact.Kind, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.fail, k)
		return
	}
	c.fail[k] = err
}

func itoa(n int) string {
	const digits = "0123456789"
	if n < 10 {
		return digits[n : n+1]
	}
	return itoa(n/10) + digits[n%10:n%10+1]
}

// failingStore fails lookups and/or inserts on demand and wraps a MemoryStore.
type failingStore struct {
	*MemoryStore
	failLookup bool
	failInsert bool
}

var errStoreDown = errors.New("database is locked")

func (s *failingStore) Insert(ctx context.Context, rec artifact.Record) (string, error) {
	if s.failInsert {
		return "", errStoreDown
	}
	return s.MemoryStore.Insert(ctx, rec)
}

func (s *failingStore) QueryLatest(ctx context.Context, q Query) (artifact.Record, bool, error) {
	if s.failLookup {
		return artifact.Record{}, false, errStoreDown
	}
	return s.MemoryStore.QueryLatest(ctx, q)
}
