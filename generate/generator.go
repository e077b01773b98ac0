package generate

import (
	"context"
	"fmt"

	"github.com/jonwraymond/cropadvisor/artifact"
)

// Request is everything a generator receives for one artifact.
type Request struct {
	Kind artifact.Kind
	Key  artifact.RequestKey
	// Dependencies holds the payload of every declared dependency of Kind.
	Dependencies map[artifact.Kind]string
	// RunID is the pipeline run this generation belongs to, if any.
	RunID string
}

// Dependency returns the payload of dependency kind k, or "".
func (r Request) Dependency(k artifact.Kind) string {
	return r.Dependencies[k]
}

// Generator produces the payload for one artifact.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: implementations must honor cancellation/deadlines.
// - Errors: a failed generation returns a non-nil error and no payload.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, req Request) (string, error)

// Generate calls f(ctx, req).
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Set maps artifact kinds to their generators.
type Set map[artifact.Kind]Generator

// Lookup returns the generator registered for kind.
func (s Set) Lookup(kind artifact.Kind) (Generator, bool) {
	g, ok := s[kind]
	if !ok || g == nil {
		return nil, false
	}
	return g, true
}

// With returns a copy of s with g registered for kind.
func (s Set) With(kind artifact.Kind, g Generator) Set {
	out := make(Set, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[kind] = g
	return out
}

// Wrap returns a copy of s with every generator passed through wrap.
func (s Set) Wrap(wrap func(artifact.Kind, Generator) Generator) Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = wrap(k, v)
	}
	return out
}

// Validate checks that every kind in kinds has a generator.
func (s Set) Validate(kinds ...artifact.Kind) error {
	for _, k := range kinds {
		if _, ok := s.Lookup(k); !ok {
			return fmt.Errorf("%w: %s", ErrMissingGenerator, k)
		}
	}
	return nil
}
