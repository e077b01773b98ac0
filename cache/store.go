package cache

import (
	"context"
	"sort"
	"time"

	"github.com/jonwraymond/cropadvisor/artifact"
)

// Store is the persistent tier of the cache.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Writes: append-only. Insert never updates an existing record.
// - Reads: QueryLatest returns the most recent matching record; ties go to
//   the later insert.
type Store interface {
	// Insert persists rec and returns its new id. rec.ID is ignored.
	Insert(ctx context.Context, rec artifact.Record) (string, error)

	// QueryLatest returns the most recent record matching q.
	// Returns (Record{}, false, nil) when nothing matches.
	QueryLatest(ctx context.Context, q Query) (artifact.Record, bool, error)
}

// Pruner deletes old records. The resolver never prunes; retention is an
// operator action.
type Pruner interface {
	// Prune deletes records created before cutoff and returns the number
	// deleted per kind.
	Prune(ctx context.Context, cutoff time.Time) (map[artifact.Kind]int64, error)
}

// Query selects records for a tier 2 lookup.
type Query struct {
	Kind artifact.Kind
	Key  artifact.RequestKey

	// MatchSowingDate also requires Key.SowingDate to match exactly.
	MatchSowingDate bool

	// Since excludes records created before it. Zero means unbounded.
	Since time.Time
}

// QueryFor builds the lookup for kind and key. Sowing-sensitive kinds match
// the sowing date.
func QueryFor(kind artifact.Kind, key artifact.RequestKey, since time.Time) Query {
	return Query{
		Kind:            kind,
		Key:             key,
		MatchSowingDate: kind.SowingSensitive(),
		Since:           since,
	}
}

// Matches reports whether rec satisfies q.
func (q Query) Matches(rec artifact.Record) bool {
	if rec.Kind != q.Kind {
		return false
	}
	if rec.Key.Location != q.Key.Location || rec.Key.CropName != q.Key.CropName {
		return false
	}
	if q.MatchSowingDate && rec.Key.SowingDate != q.Key.SowingDate {
		return false
	}
	if !q.Since.IsZero() && rec.CreatedAt.Before(q.Since) {
		return false
	}
	return true
}

// LinkedRecords follows the DependencyIDs of records transitively and
// returns the referenced records that are not in records themselves.
// fetch loads records by id and may omit ids it does not know, such as
// pruned rows. Results are ordered by creation time.
func LinkedRecords(ctx context.Context, records []artifact.Record, fetch func(ctx context.Context, ids []string) ([]artifact.Record, error)) ([]artifact.Record, error) {
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		seen[rec.ID] = true
	}

	var linked []artifact.Record
	frontier := records
	for len(frontier) > 0 {
		var ids []string
		for _, rec := range frontier {
			for _, id := range rec.DependencyIDs {
				if id != "" && !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		if len(ids) == 0 {
			break
		}
		sort.Strings(ids)
		found, err := fetch(ctx, ids)
		if err != nil {
			return nil, err
		}
		linked = append(linked, found...)
		frontier = found
	}

	sort.SliceStable(linked, func(i, j int) bool {
		return linked[i].CreatedAt.Before(linked[j].CreatedAt)
	})
	return linked, nil
}
