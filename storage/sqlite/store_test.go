package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/cache"
	"github.com/jonwraymond/cropadvisor/generate"
	"github.com/jonwraymond/cropadvisor/storage/sqlite/migrations"
)

var (
	testNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	testKey = artifact.RequestKey{Location: "Pune", CropName: "wheat", SowingDate: "2024-11-01"}
)

func TestInsertAndQueryLatest(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	first, err := store.Insert(ctx, artifact.Record{
		Kind:      artifact.KindSoil,
		Key:       testKey,
		Payload:   "loam, old",
		CreatedAt: testNow.Add(-2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("insert first: %v", err)
	}
	second, err := store.Insert(ctx, artifact.Record{
		Kind:          artifact.KindSoil,
		Key:           testKey,
		Payload:       "loam, new",
		RunID:         "run-1",
		DependencyIDs: map[artifact.Kind]string{artifact.KindWater: "w-1"},
		CreatedAt:     testNow.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("insert second: %v", err)
	}
	if first == "" || second == "" || first == second {
		t.Fatalf("ids = %q, %q; want distinct non-empty", first, second)
	}

	rec, ok, err := store.QueryLatest(ctx, cache.QueryFor(artifact.KindSoil, testKey, time.Time{}))
	if err != nil {
		t.Fatalf("query latest: %v", err)
	}
	if !ok {
		t.Fatal("query latest found nothing")
	}
	if rec.ID != second {
		t.Errorf("id = %q, want %q", rec.ID, second)
	}
	if rec.Payload != "loam, new" {
		t.Errorf("payload = %q", rec.Payload)
	}
	if rec.RunID != "run-1" {
		t.Errorf("run id = %q", rec.RunID)
	}
	if id, ok := rec.DependencyID(artifact.KindWater); !ok || id != "w-1" {
		t.Errorf("dependency id = %q, %v", id, ok)
	}
	if !rec.CreatedAt.Equal(testNow.Add(-time.Hour)) {
		t.Errorf("created at = %v", rec.CreatedAt)
	}
	if rec.Key != testKey {
		t.Errorf("key = %+v", rec.Key)
	}
}

func TestQueryLatest_TieGoesToLaterInsert(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	for _, payload := range []string{"a", "b", "c"} {
		if _, err := store.Insert(ctx, artifact.Record{
			Kind: artifact.KindWeather, Key: testKey, Payload: payload, CreatedAt: testNow,
		}); err != nil {
			t.Fatalf("insert %s: %v", payload, err)
		}
	}

	rec, ok, err := store.QueryLatest(ctx, cache.QueryFor(artifact.KindWeather, testKey, time.Time{}))
	if err != nil || !ok {
		t.Fatalf("query latest: ok=%v err=%v", ok, err)
	}
	if rec.Payload != "c" {
		t.Errorf("payload = %q, want c", rec.Payload)
	}
}

func TestQueryLatest_Predicate(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, artifact.Record{
		Kind: artifact.KindStage, Key: testKey, Payload: "plan", CreatedAt: testNow.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	otherSowing := testKey
	otherSowing.SowingDate = "2024-12-01"

	tests := []struct {
		name  string
		query cache.Query
		want  bool
	}{
		{"exact", cache.QueryFor(artifact.KindStage, testKey, time.Time{}), true},
		{"other sowing date", cache.QueryFor(artifact.KindStage, otherSowing, time.Time{}), false},
		{"other kind", cache.QueryFor(artifact.KindSoil, testKey, time.Time{}), false},
		{"other crop", cache.QueryFor(artifact.KindStage, artifact.RequestKey{Location: "Pune", CropName: "Wheat", SowingDate: "2024-11-01"}, time.Time{}), false},
		{"since before", cache.QueryFor(artifact.KindStage, testKey, testNow.Add(-2*time.Hour)), true},
		{"since exact", cache.QueryFor(artifact.KindStage, testKey, testNow.Add(-time.Hour)), true},
		{"since after", cache.QueryFor(artifact.KindStage, testKey, testNow.Add(-time.Hour+time.Second)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := store.QueryLatest(ctx, tt.query)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if ok != tt.want {
				t.Errorf("found = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestQueryLatest_SowingDateIgnoredForSoil(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, artifact.Record{
		Kind: artifact.KindSoil, Key: testKey, Payload: "clay", CreatedAt: testNow,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	key := testKey
	key.SowingDate = ""
	rec, ok, err := store.QueryLatest(ctx, cache.QueryFor(artifact.KindSoil, key, time.Time{}))
	if err != nil || !ok {
		t.Fatalf("query: ok=%v err=%v", ok, err)
	}
	if rec.Payload != "clay" {
		t.Errorf("payload = %q", rec.Payload)
	}
}

func TestInsertValidation(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		rec  artifact.Record
		want error
	}{
		{"unknown kind", artifact.Record{Kind: "fertilizer", Key: testKey}, artifact.ErrUnknownKind},
		{"merge kind", artifact.Record{Kind: artifact.KindMerge, Key: testKey}, artifact.ErrUnknownKind},
		{"no location", artifact.Record{Kind: artifact.KindSoil, Key: artifact.RequestKey{CropName: "wheat"}}, artifact.ErrMissingLocation},
		{"no crop", artifact.Record{Kind: artifact.KindSoil, Key: artifact.RequestKey{Location: "Pune"}}, artifact.ErrMissingCrop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Insert(ctx, tt.rec); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPrune(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	insert := func(kind artifact.Kind, age time.Duration) {
		t.Helper()
		if _, err := store.Insert(ctx, artifact.Record{
			Kind: kind, Key: testKey, Payload: "x", CreatedAt: testNow.Add(-age),
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	insert(artifact.KindSoil, 72*time.Hour)
	insert(artifact.KindSoil, 50*time.Hour)
	insert(artifact.KindWeather, 49*time.Hour)
	insert(artifact.KindWeather, time.Hour)

	deleted, err := store.Prune(ctx, testNow.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted[artifact.KindSoil] != 2 || deleted[artifact.KindWeather] != 1 {
		t.Errorf("deleted = %v", deleted)
	}

	if _, ok, _ := store.QueryLatest(ctx, cache.QueryFor(artifact.KindSoil, testKey, time.Time{})); ok {
		t.Error("soil survived prune")
	}
	if _, ok, _ := store.QueryLatest(ctx, cache.QueryFor(artifact.KindWeather, testKey, time.Time{})); !ok {
		t.Error("recent weather was pruned")
	}

	again, err := store.Prune(ctx, testNow.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("second prune: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second prune deleted %v", again)
	}
}

func TestRuns(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	for i, step := range []string{"soil", "stage", "advisory"} {
		id, err := store.CreateRun(ctx, artifact.Run{
			Step:      step,
			Key:       testKey,
			CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create run %s: %v", step, err)
		}
		if id == "" {
			t.Fatalf("create run %s returned empty id", step)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs len = %d, want 2", len(runs))
	}
	if runs[0].Step != "advisory" || runs[1].Step != "stage" {
		t.Errorf("steps = %q, %q", runs[0].Step, runs[1].Step)
	}
	if runs[0].Key != testKey {
		t.Errorf("key = %+v", runs[0].Key)
	}

	all, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list all runs: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all runs len = %d, want 3", len(all))
	}

	if _, err := store.CreateRun(ctx, artifact.Run{Key: testKey}); err == nil {
		t.Error("expected error for run without step")
	}
}

func TestRunIDKeptWhenSupplied(t *testing.T) {
	store := openTempStore(t)
	id, err := store.CreateRun(context.Background(), artifact.Run{ID: "run-42", Step: "soil", Key: testKey})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if id != "run-42" {
		t.Errorf("id = %q, want run-42", id)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advisor.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Insert(context.Background(), artifact.Record{
		Kind: artifact.KindWater, Key: testKey, Payload: "canal", CreatedAt: testNow,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rec, ok, err := reopened.QueryLatest(context.Background(), cache.QueryFor(artifact.KindWater, testKey, time.Time{}))
	if err != nil || !ok {
		t.Fatalf("query after reopen: ok=%v err=%v", ok, err)
	}
	if rec.Payload != "canal" {
		t.Errorf("payload = %q", rec.Payload)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestNilStore(t *testing.T) {
	var store *Store
	ctx := context.Background()
	if err := store.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("ping err = %v", err)
	}
	if _, err := store.Insert(ctx, artifact.Record{Kind: artifact.KindSoil, Key: testKey}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("insert err = %v", err)
	}
	if _, _, err := store.QueryLatest(ctx, cache.Query{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("query err = %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Insert(ctx, artifact.Record{Kind: artifact.KindSoil, Key: testKey}); !errors.Is(err, context.Canceled) {
		t.Errorf("insert err = %v", err)
	}
	if _, err := store.ListRuns(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("list runs err = %v", err)
	}
}

func TestResolverAgainstSQLite(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	calls := map[artifact.Kind]int{}
	gens := generate.Set{}
	for _, kind := range artifact.Kinds {
		kind := kind
		gens[kind] = generate.Func(func(ctx context.Context, req generate.Request) (string, error) {
			calls[kind]++
			return string(kind) + " payload", nil
		})
	}

	resolver := cache.NewResolver(store, cache.WithClock(func() time.Time { return testNow }))

	first, err := resolver.Resolve(ctx, artifact.NewScope("run-1"), artifact.KindStage, testKey, gens)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if !first.Persisted() {
		t.Fatal("stage record was not persisted")
	}
	for _, dep := range artifact.KindStage.Dependencies() {
		if _, ok := first.DependencyID(dep); !ok {
			t.Errorf("missing dependency id for %s", dep)
		}
	}

	second, err := resolver.Resolve(ctx, artifact.NewScope("run-2"), artifact.KindStage, testKey, gens)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second id = %q, want stored %q", second.ID, first.ID)
	}
	for _, kind := range []artifact.Kind{artifact.KindSoil, artifact.KindWater, artifact.KindWeather, artifact.KindStage} {
		if calls[kind] != 1 {
			t.Errorf("%s generated %d times, want 1", kind, calls[kind])
		}
	}
}

func TestResolverMaxAgeBoundary(t *testing.T) {
	// created_at is stored in milliseconds, so the boundary is exercised at
	// that resolution.
	tests := []struct {
		name string
		age  time.Duration
		hit  bool
	}{
		{"exactly max age", 6 * time.Hour, true},
		{"one millisecond inside", 6*time.Hour - time.Millisecond, true},
		{"one millisecond past", 6*time.Hour + time.Millisecond, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := openTempStore(t)
			ctx := context.Background()

			if _, err := store.Insert(ctx, artifact.Record{
				Kind: artifact.KindWeather, Key: testKey, Payload: "stored", CreatedAt: testNow.Add(-tt.age),
			}); err != nil {
				t.Fatalf("insert: %v", err)
			}

			gens := generate.Set{
				artifact.KindWeather: generate.Func(func(context.Context, generate.Request) (string, error) {
					return "generated", nil
				}),
			}
			resolver := cache.NewResolver(store, cache.WithClock(func() time.Time { return testNow }))
			rec, err := resolver.Resolve(ctx, artifact.NewScope("run-1"), artifact.KindWeather, testKey, gens)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			want := "generated"
			if tt.hit {
				want = "stored"
			}
			if rec.Payload != want {
				t.Errorf("payload = %q, want %q", rec.Payload, want)
			}
		})
	}
}

func TestRunSnapshot(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	earlier, err := store.CreateRun(ctx, artifact.Run{Step: "soil", Key: testKey, CreatedAt: testNow.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("create earlier run: %v", err)
	}
	soilID, err := store.Insert(ctx, artifact.Record{
		Kind: artifact.KindSoil, Key: testKey, Payload: "loam", RunID: earlier, CreatedAt: testNow.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("insert soil: %v", err)
	}

	run, err := store.CreateRun(ctx, artifact.Run{Step: "advisory", Key: testKey, CreatedAt: testNow})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	stageID, err := store.Insert(ctx, artifact.Record{
		Kind:          artifact.KindStage,
		Key:           testKey,
		Payload:       "tillering",
		RunID:         run,
		DependencyIDs: map[artifact.Kind]string{artifact.KindSoil: soilID, artifact.KindWater: "pruned"},
		CreatedAt:     testNow,
	})
	if err != nil {
		t.Fatalf("insert stage: %v", err)
	}
	pestID, err := store.Insert(ctx, artifact.Record{
		Kind:          artifact.KindPest,
		Key:           testKey,
		Payload:       "aphids",
		RunID:         run,
		DependencyIDs: map[artifact.Kind]string{artifact.KindStage: stageID, artifact.KindSoil: soilID},
		CreatedAt:     testNow.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("insert pest: %v", err)
	}
	mergeID, err := store.SaveMerge(ctx, artifact.Merge{RunID: run, Key: testKey, Payload: "advice", CreatedAt: testNow.Add(2 * time.Second)})
	if err != nil {
		t.Fatalf("save merge: %v", err)
	}

	snap, err := store.RunSnapshot(ctx, run)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Run.ID != run || snap.Run.Step != "advisory" || snap.Run.Key != testKey || !snap.Run.CreatedAt.Equal(testNow) {
		t.Errorf("run = %+v", snap.Run)
	}
	if len(snap.Records) != 2 || snap.Records[0].ID != stageID || snap.Records[1].ID != pestID {
		t.Fatalf("records = %+v", snap.Records)
	}
	if id, ok := snap.Records[1].DependencyID(artifact.KindStage); !ok || id != stageID {
		t.Errorf("pest dependency = %q, %v", id, ok)
	}
	if len(snap.Linked) != 1 || snap.Linked[0].ID != soilID || snap.Linked[0].Payload != "loam" {
		t.Errorf("linked = %+v", snap.Linked)
	}
	if len(snap.Merges) != 1 || snap.Merges[0].ID != mergeID || snap.Merges[0].Payload != "advice" {
		t.Errorf("merges = %+v", snap.Merges)
	}

	if _, err := store.RunSnapshot(ctx, "missing"); !errors.Is(err, artifact.ErrRunNotFound) {
		t.Errorf("unknown run err = %v", err)
	}
}

func TestMergesInvisibleToLookupsAndPruned(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if _, err := store.SaveMerge(ctx, artifact.Merge{RunID: "run-1", Key: testKey, Payload: "old", CreatedAt: testNow.Add(-72 * time.Hour)}); err != nil {
		t.Fatalf("save old merge: %v", err)
	}
	if _, err := store.SaveMerge(ctx, artifact.Merge{RunID: "run-2", Key: testKey, Payload: "new", CreatedAt: testNow}); err != nil {
		t.Fatalf("save new merge: %v", err)
	}
	for _, kind := range artifact.Kinds {
		if _, ok, err := store.QueryLatest(ctx, cache.QueryFor(kind, testKey, time.Time{})); err != nil || ok {
			t.Errorf("%s lookup found a merge row: ok=%v err=%v", kind, ok, err)
		}
	}

	deleted, err := store.Prune(ctx, testNow.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted[artifact.KindMerge] != 1 {
		t.Errorf("deleted = %v", deleted)
	}

	if _, err := store.SaveMerge(ctx, artifact.Merge{RunID: "run-3", Key: artifact.RequestKey{CropName: "wheat"}}); !errors.Is(err, artifact.ErrMissingLocation) {
		t.Errorf("save merge without location err = %v", err)
	}
}

func TestMigrationsApplyOnce(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if err := applyMigrations(ctx, store.sqlDB, migrations.FS); err != nil {
		t.Fatalf("reapply migrations: %v", err)
	}
	var count int
	if err := store.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+migrationTable).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 3 {
		t.Errorf("applied migrations = %d, want 3", count)
	}
}

func TestUpSection(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no markers", "CREATE TABLE a (x);", "CREATE TABLE a (x);"},
		{"up only", "-- +migrate Up\nCREATE TABLE a (x);", "\nCREATE TABLE a (x);"},
		{"up and down", "-- +migrate Up\nCREATE TABLE a (x);\n-- +migrate Down\nDROP TABLE a;", "\nCREATE TABLE a (x);\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := upSection(tt.content); got != tt.want {
				t.Errorf("upSection() = %q, want %q", got, tt.want)
			}
		})
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "advisor.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
