// Package sqlite provides the durable artifact store on SQLite.
//
// Artifacts are append-only rows. Lookups return the most recent matching
// row, ordered by creation time and then insertion order. The driver is
// modernc.org/sqlite, so no cgo toolchain is needed.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/cache"
	"github.com/jonwraymond/cropadvisor/storage/sqlite/migrations"
)

// ErrNotConfigured is returned by methods called on a nil or closed Store.
var ErrNotConfigured = errors.New("sqlite: storage is not configured")

// Store is a SQLite-backed cache.Store, cache.Pruner and run log.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens the database at path, creating it if needed, and applies
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite: storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return ErrNotConfigured
	}
	return s.sqlDB.PingContext(ctx)
}

// Insert appends rec under a new id and returns it. A zero CreatedAt is set
// to now.
func (s *Store) Insert(ctx context.Context, rec artifact.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", ErrNotConfigured
	}
	if !rec.Kind.Valid() {
		return "", fmt.Errorf("%w: %q", artifact.ErrUnknownKind, rec.Kind)
	}
	if rec.Key.Location == "" {
		return "", artifact.ErrMissingLocation
	}
	if rec.Key.CropName == "" {
		return "", artifact.ErrMissingCrop
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	deps, err := encodeDependencyIDs(rec.DependencyIDs)
	if err != nil {
		return "", fmt.Errorf("encode dependency ids: %w", err)
	}

	id := uuid.NewString()
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO artifacts (
	id,
	kind,
	location,
	crop_name,
	sowing_date,
	payload,
	dependency_ids,
	run_id,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		id,
		string(rec.Kind),
		rec.Key.Location,
		rec.Key.CropName,
		rec.Key.SowingDate,
		rec.Payload,
		deps,
		rec.RunID,
		rec.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert artifact: %w", err)
	}
	return id, nil
}

// QueryLatest returns the newest row matching q. Rows with equal creation
// times are ordered by insertion.
func (s *Store) QueryLatest(ctx context.Context, q cache.Query) (artifact.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return artifact.Record{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return artifact.Record{}, false, ErrNotConfigured
	}

	var (
		where = []string{"kind = ?", "location = ?", "crop_name = ?"}
		args  = []any{string(q.Kind), q.Key.Location, q.Key.CropName}
	)
	if q.MatchSowingDate {
		where = append(where, "sowing_date = ?")
		args = append(args, q.Key.SowingDate)
	}
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since.UTC().UnixMilli())
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT
	id,
	kind,
	location,
	crop_name,
	sowing_date,
	payload,
	dependency_ids,
	run_id,
	created_at
FROM artifacts
WHERE `+strings.Join(where, " AND ")+`
ORDER BY created_at DESC, rowid DESC
LIMIT 1
`, args...)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return artifact.Record{}, false, nil
	}
	if err != nil {
		return artifact.Record{}, false, fmt.Errorf("query latest artifact: %w", err)
	}
	return rec, true, nil
}

// Prune deletes artifact and merge rows created before cutoff and returns
// the count removed per kind, with merges under artifact.KindMerge. Runs are
// kept.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (map[artifact.Kind]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, ErrNotConfigured
	}
	ms := cutoff.UTC().UnixMilli()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		"SELECT kind, COUNT(*) FROM artifacts WHERE created_at < ? GROUP BY kind", ms)
	if err != nil {
		return nil, fmt.Errorf("count prunable artifacts: %w", err)
	}
	deleted := make(map[artifact.Kind]int64)
	for rows.Next() {
		var (
			kind  string
			count int64
		)
		if err := rows.Scan(&kind, &count); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan prune count: %w", err)
		}
		deleted[artifact.Kind(kind)] = count
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate prune counts: %w", err)
	}
	_ = rows.Close()

	if _, err := tx.ExecContext(ctx, "DELETE FROM artifacts WHERE created_at < ?", ms); err != nil {
		return nil, fmt.Errorf("prune artifacts: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM merges WHERE created_at < ?", ms)
	if err != nil {
		return nil, fmt.Errorf("prune merges: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		deleted[artifact.KindMerge] = n
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit prune: %w", err)
	}
	return deleted, nil
}

// CreateRun records a pipeline invocation and returns its id. An empty
// run.ID is replaced with a new UUID.
func (s *Store) CreateRun(ctx context.Context, run artifact.Run) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(run.Step) == "" {
		return "", errors.New("sqlite: run step is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO runs (
	id,
	step,
	location,
	crop_name,
	sowing_date,
	created_at
) VALUES (?, ?, ?, ?, ?, ?)
`,
		run.ID,
		run.Step,
		run.Key.Location,
		run.Key.CropName,
		run.Key.SowingDate,
		run.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]artifact.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	step,
	location,
	crop_name,
	sowing_date,
	created_at
FROM runs
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []artifact.Run
	for rows.Next() {
		var (
			run       artifact.Run
			createdAt int64
		)
		if err := rows.Scan(
			&run.ID,
			&run.Step,
			&run.Key.Location,
			&run.Key.CropName,
			&run.Key.SowingDate,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.CreatedAt = time.UnixMilli(createdAt).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (artifact.Record, error) {
	var (
		rec       artifact.Record
		kind      string
		deps      string
		createdAt int64
	)
	if err := row.Scan(
		&rec.ID,
		&kind,
		&rec.Key.Location,
		&rec.Key.CropName,
		&rec.Key.SowingDate,
		&rec.Payload,
		&deps,
		&rec.RunID,
		&createdAt,
	); err != nil {
		return artifact.Record{}, err
	}
	rec.Kind = artifact.Kind(kind)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	ids, err := decodeDependencyIDs(deps)
	if err != nil {
		return artifact.Record{}, fmt.Errorf("decode dependency ids: %w", err)
	}
	rec.DependencyIDs = ids
	return rec, nil
}

func encodeDependencyIDs(ids map[artifact.Kind]string) (string, error) {
	if len(ids) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeDependencyIDs(raw string) (map[artifact.Kind]string, error) {
	var ids map[artifact.Kind]string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

var (
	_ cache.Store  = (*Store)(nil)
	_ cache.Pruner = (*Store)(nil)
)
