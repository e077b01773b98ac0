package generate

import (
	"errors"

	"github.com/jonwraymond/cropadvisor/artifact"
)

// Sentinel errors for generation.
var (
	// ErrGenerationFailed matches every generator failure.
	ErrGenerationFailed = errors.New("generate: generation failed")

	// ErrEmptyPayload indicates a generator returned no text.
	ErrEmptyPayload = errors.New("generate: empty payload")

	// ErrMissingGenerator indicates a Set has no generator for a kind.
	ErrMissingGenerator = errors.New("generate: no generator registered")
)

// Error is a generation failure for one artifact kind.
type Error struct {
	Kind artifact.Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "generate: " + string(e.Kind) + ": generation failed"
	}
	return "generate: " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports ErrGenerationFailed as a match.
func (e *Error) Is(target error) bool {
	return target == ErrGenerationFailed
}

// Wrap returns err as an *Error for kind. Nil stays nil, and an *Error for
// the same kind is returned unchanged.
func Wrap(kind artifact.Kind, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) && ge.Kind == kind {
		return err
	}
	return &Error{Kind: kind, Err: err}
}
