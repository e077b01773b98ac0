package artifact

import (
	"fmt"
	"time"
)

// RequestKey identifies one logical fetch. Fields are compared exactly; no
// case or whitespace normalization is applied.
type RequestKey struct {
	Location   string `json:"location"`
	CropName   string `json:"crop_name"`
	SowingDate string `json:"sowing_date,omitempty"`
}

// Validate checks that the key carries what kind k needs.
func (k RequestKey) Validate(kind Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if k.Location == "" {
		return ErrMissingLocation
	}
	if k.CropName == "" {
		return ErrMissingCrop
	}
	if kind.RequiresSowingDate() && k.SowingDate == "" {
		return ErrSowingDateRequired
	}
	return nil
}

// Record is the persisted and cached unit.
//
// An empty ID means the record has not been durably persisted; such a record
// only lives in the Scope of the request that generated it. Records are
// treated as immutable once created.
type Record struct {
	ID            string          `json:"id,omitempty"`
	Kind          Kind            `json:"kind"`
	Key           RequestKey      `json:"key"`
	Payload       string          `json:"payload"`
	DependencyIDs map[Kind]string `json:"dependency_ids,omitempty"`
	RunID         string          `json:"run_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Persisted reports whether the record has a durable id.
func (r Record) Persisted() bool {
	return r.ID != ""
}

// DependencyID returns the id of the record of kind k this record was derived
// from, and whether one was recorded.
func (r Record) DependencyID(k Kind) (string, bool) {
	id, ok := r.DependencyIDs[k]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// FromValue normalizes a value found at an ingestion boundary into a Record.
// Records and record pointers pass through; strings, byte slices and
// Stringers become payloads with no id; anything else is formatted with %v.
func FromValue(kind Kind, v any) Record {
	switch val := v.(type) {
	case Record:
		if val.Kind == "" {
			val.Kind = kind
		}
		return val
	case *Record:
		if val == nil {
			return Record{Kind: kind}
		}
		return FromValue(kind, *val)
	case string:
		return Record{Kind: kind, Payload: val}
	case []byte:
		return Record{Kind: kind, Payload: string(val)}
	case fmt.Stringer:
		return Record{Kind: kind, Payload: val.String()}
	case nil:
		return Record{Kind: kind}
	default:
		return Record{Kind: kind, Payload: fmt.Sprintf("%v", val)}
	}
}
