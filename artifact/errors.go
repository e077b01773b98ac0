package artifact

import "errors"

// Sentinel errors for artifact operations.
var (
	// ErrUnknownKind indicates a kind name outside the known set.
	ErrUnknownKind = errors.New("artifact: unknown kind")

	// ErrSowingDateRequired indicates a stage request without a sowing date.
	ErrSowingDateRequired = errors.New("artifact: sowing date is required")

	// ErrMissingLocation indicates a request key without a location.
	ErrMissingLocation = errors.New("artifact: location is required")

	// ErrMissingCrop indicates a request key without a crop name.
	ErrMissingCrop = errors.New("artifact: crop name is required")

	// ErrRunNotFound indicates a run id with no recorded run.
	ErrRunNotFound = errors.New("artifact: run not found")
)
