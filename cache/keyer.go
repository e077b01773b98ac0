package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/cropadvisor/artifact"
)

// Keyer derives the in-flight key that collapses concurrent resolutions of
// the same artifact.
//
// Contract:
// - Determinism: requests that match the same stored records must produce
//   the same key.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(kind artifact.Kind, key artifact.RequestKey) (string, error)
}

// DefaultKeyer hashes the fields a store lookup matches on.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a DefaultKeyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// lookupFields is encoded in field order, so equal lookups encode equally.
type lookupFields struct {
	Location   string `json:"location"`
	CropName   string `json:"crop_name"`
	SowingDate string `json:"sowing_date,omitempty"`
}

// Key returns artifact:<kind>:<16 hex chars of SHA-256>. The sowing date
// only takes part for sowing-sensitive kinds, matching QueryFor.
func (k *DefaultKeyer) Key(kind artifact.Kind, key artifact.RequestKey) (string, error) {
	f := lookupFields{Location: key.Location, CropName: key.CropName}
	if kind.SowingSensitive() {
		f.SowingDate = key.SowingDate
	}

	encoded, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("cache: encode key: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return "artifact:" + string(kind) + ":" + hex.EncodeToString(sum[:8]), nil
}

var _ Keyer = (*DefaultKeyer)(nil)
