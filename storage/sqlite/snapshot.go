package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/cropadvisor/artifact"
	"github.com/jonwraymond/cropadvisor/cache"
)

const recordColumns = `
	id,
	kind,
	location,
	crop_name,
	sowing_date,
	payload,
	dependency_ids,
	run_id,
	created_at`

// SaveMerge stores the output of a merge step and returns its id. Merge rows
// live in their own table so artifact lookups never see them.
func (s *Store) SaveMerge(ctx context.Context, m artifact.Merge) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", ErrNotConfigured
	}
	if m.Key.Location == "" {
		return "", artifact.ErrMissingLocation
	}
	if m.Key.CropName == "" {
		return "", artifact.ErrMissingCrop
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}

	id := uuid.NewString()
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO merges (
	id,
	run_id,
	location,
	crop_name,
	sowing_date,
	payload,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		id,
		m.RunID,
		m.Key.Location,
		m.Key.CropName,
		m.Key.SowingDate,
		m.Payload,
		m.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert merge: %w", err)
	}
	return id, nil
}

// RunSnapshot returns the run with id, the artifacts and merges stamped with
// it, and the artifacts those were built from. An unknown id returns
// artifact.ErrRunNotFound.
func (s *Store) RunSnapshot(ctx context.Context, id string) (artifact.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return artifact.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return artifact.Snapshot{}, ErrNotConfigured
	}

	var (
		snap      artifact.Snapshot
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT
	id,
	step,
	location,
	crop_name,
	sowing_date,
	created_at
FROM runs
WHERE id = ?
`, id).Scan(
		&snap.Run.ID,
		&snap.Run.Step,
		&snap.Run.Key.Location,
		&snap.Run.Key.CropName,
		&snap.Run.Key.SowingDate,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return artifact.Snapshot{}, fmt.Errorf("%w: %s", artifact.ErrRunNotFound, id)
	}
	if err != nil {
		return artifact.Snapshot{}, fmt.Errorf("load run: %w", err)
	}
	snap.Run.CreatedAt = time.UnixMilli(createdAt).UTC()

	snap.Records, err = s.queryRecords(ctx,
		"SELECT"+recordColumns+" FROM artifacts WHERE run_id = ? ORDER BY created_at, rowid", id)
	if err != nil {
		return artifact.Snapshot{}, fmt.Errorf("load run artifacts: %w", err)
	}

	snap.Linked, err = cache.LinkedRecords(ctx, snap.Records, s.recordsByID)
	if err != nil {
		return artifact.Snapshot{}, fmt.Errorf("load linked artifacts: %w", err)
	}

	snap.Merges, err = s.runMerges(ctx, id)
	if err != nil {
		return artifact.Snapshot{}, fmt.Errorf("load run merges: %w", err)
	}
	return snap, nil
}

func (s *Store) recordsByID(ctx context.Context, ids []string) ([]artifact.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	return s.queryRecords(ctx,
		"SELECT"+recordColumns+" FROM artifacts WHERE id IN ("+placeholders+") ORDER BY created_at, rowid", args...)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]artifact.Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []artifact.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) runMerges(ctx context.Context, runID string) ([]artifact.Merge, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	run_id,
	location,
	crop_name,
	sowing_date,
	payload,
	created_at
FROM merges
WHERE run_id = ?
ORDER BY created_at, rowid
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []artifact.Merge
	for rows.Next() {
		var (
			m         artifact.Merge
			createdAt int64
		)
		if err := rows.Scan(
			&m.ID,
			&m.RunID,
			&m.Key.Location,
			&m.Key.CropName,
			&m.Key.SowingDate,
			&m.Payload,
			&createdAt,
		); err != nil {
			return nil, err
		}
		m.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}
