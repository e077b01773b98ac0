package cache

import (
	"fmt"
	"time"

	"github.com/jonwraymond/cropadvisor/artifact"
)

// Policy configures how old a stored record may be and still answer a
// lookup. Kinds without a positive max-age skip the store tier.
type Policy struct {
	MaxAge map[artifact.Kind]time.Duration
}

// DefaultPolicy returns the default max-ages:
// soil and water 24h, weather 6h, stage 48h. Other kinds always generate.
func DefaultPolicy() Policy {
	return Policy{
		MaxAge: map[artifact.Kind]time.Duration{
			artifact.KindSoil:    24 * time.Hour,
			artifact.KindWater:   24 * time.Hour,
			artifact.KindWeather: 6 * time.Hour,
			artifact.KindStage:   48 * time.Hour,
		},
	}
}

// NoStorePolicy returns a policy that never reads from the store.
func NoStorePolicy() Policy {
	return Policy{}
}

// MaxAgeFor returns the max-age of kind, and whether the store tier applies.
func (p Policy) MaxAgeFor(kind artifact.Kind) (time.Duration, bool) {
	d, ok := p.MaxAge[kind]
	if !ok || d <= 0 {
		return 0, false
	}
	return d, true
}

// Since returns the oldest acceptable creation time for kind at now.
func (p Policy) Since(kind artifact.Kind, now time.Time) (time.Time, bool) {
	d, ok := p.MaxAgeFor(kind)
	if !ok {
		return time.Time{}, false
	}
	return now.Add(-d), true
}

// With returns a copy of p with kind's max-age set to d. Zero disables the
// store tier for kind.
func (p Policy) With(kind artifact.Kind, d time.Duration) Policy {
	out := Policy{MaxAge: make(map[artifact.Kind]time.Duration, len(p.MaxAge)+1)}
	for k, v := range p.MaxAge {
		out.MaxAge[k] = v
	}
	out.MaxAge[kind] = d
	return out
}

// Validate rejects unknown kinds and negative durations.
func (p Policy) Validate() error {
	for k, d := range p.MaxAge {
		if !k.Valid() {
			return fmt.Errorf("%w: unknown kind %q", ErrInvalidPolicy, k)
		}
		if d < 0 {
			return fmt.Errorf("%w: negative max-age %s for %s", ErrInvalidPolicy, d, k)
		}
	}
	return nil
}
