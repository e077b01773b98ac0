package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrStorageUnavailable wraps persistent store failures. The resolver logs
	// it and carries on; it is never returned from Resolve.
	ErrStorageUnavailable = errors.New("cache: storage unavailable")

	// ErrNoGenerator indicates no generator is registered for a kind.
	ErrNoGenerator = errors.New("cache: no generator for kind")

	// ErrNilScope indicates Resolve was called without a request scope.
	ErrNilScope = errors.New("cache: scope is nil")

	// ErrInvalidPolicy indicates a policy names an unknown kind or a negative max-age.
	ErrInvalidPolicy = errors.New("cache: invalid policy")
)
