package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/cropadvisor/artifact"
)

// MemoryStore is an in-process Store, Pruner and run log. Records live only
// as long as the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records []artifact.Record
	runs    []artifact.Run
	merges  []artifact.Merge
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Insert appends rec with a fresh id. A zero CreatedAt is set to now.
func (s *MemoryStore) Insert(ctx context.Context, rec artifact.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec.ID = uuid.NewString()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	rec.DependencyIDs = copyIDs(rec.DependencyIDs)

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return rec.ID, nil
}

// QueryLatest returns the newest record matching q. Later inserts win ties.
func (s *MemoryStore) QueryLatest(ctx context.Context, q Query) (artifact.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return artifact.Record{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  artifact.Record
		found bool
	)
	for _, rec := range s.records {
		if !q.Matches(rec) {
			continue
		}
		if !found || !rec.CreatedAt.Before(best.CreatedAt) {
			best, found = rec, true
		}
	}
	if found {
		best.DependencyIDs = copyIDs(best.DependencyIDs)
	}
	return best, found, nil
}

// Prune deletes records created before cutoff.
func (s *MemoryStore) Prune(ctx context.Context, cutoff time.Time) (map[artifact.Kind]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := make(map[artifact.Kind]int64)
	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			deleted[rec.Kind]++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept

	keptMerges := s.merges[:0]
	for _, m := range s.merges {
		if m.CreatedAt.Before(cutoff) {
			deleted[artifact.KindMerge]++
			continue
		}
		keptMerges = append(keptMerges, m)
	}
	s.merges = keptMerges
	return deleted, nil
}

// CreateRun records a pipeline invocation and returns its id.
func (s *MemoryStore) CreateRun(ctx context.Context, run artifact.Run) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	s.runs = append(s.runs, run)
	s.mu.Unlock()
	return run.ID, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *MemoryStore) ListRuns(ctx context.Context, limit int) ([]artifact.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	runs := make([]artifact.Run, len(s.runs))
	copy(runs, s.runs)
	s.mu.RUnlock()

	// Reverse insertion order first so equal timestamps list newest insert first.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// SaveMerge stores a merge result for run history and returns its id.
func (s *MemoryStore) SaveMerge(ctx context.Context, m artifact.Merge) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.ID = uuid.NewString()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	s.merges = append(s.merges, m)
	s.mu.Unlock()
	return m.ID, nil
}

// RunSnapshot returns the run with id, the records and merges stamped with
// it, and the records those records were built from.
func (s *MemoryStore) RunSnapshot(ctx context.Context, id string) (artifact.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return artifact.Snapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap artifact.Snapshot
	found := false
	for _, run := range s.runs {
		if run.ID == id {
			snap.Run, found = run, true
			break
		}
	}
	if !found {
		return artifact.Snapshot{}, fmt.Errorf("%w: %s", artifact.ErrRunNotFound, id)
	}

	for _, rec := range s.records {
		if rec.RunID == id {
			rec.DependencyIDs = copyIDs(rec.DependencyIDs)
			snap.Records = append(snap.Records, rec)
		}
	}
	sort.SliceStable(snap.Records, func(i, j int) bool {
		return snap.Records[i].CreatedAt.Before(snap.Records[j].CreatedAt)
	})
	for _, m := range s.merges {
		if m.RunID == id {
			snap.Merges = append(snap.Merges, m)
		}
	}

	linked, err := LinkedRecords(ctx, snap.Records, s.byIDLocked)
	if err != nil {
		return artifact.Snapshot{}, err
	}
	snap.Linked = linked
	return snap, nil
}

// byIDLocked returns the records with the given ids. s.mu must be held.
func (s *MemoryStore) byIDLocked(_ context.Context, ids []string) ([]artifact.Record, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []artifact.Record
	for _, rec := range s.records {
		if want[rec.ID] {
			rec.DependencyIDs = copyIDs(rec.DependencyIDs)
			out = append(out, rec)
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ping reports whether the store is usable. It always is.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func copyIDs(ids map[artifact.Kind]string) map[artifact.Kind]string {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[artifact.Kind]string, len(ids))
	for k, v := range ids {
		out[k] = v
	}
	return out
}

// Ensure MemoryStore implements Store and Pruner
var (
	_ Store  = (*MemoryStore)(nil)
	_ Pruner = (*MemoryStore)(nil)
)
