package health

import "errors"

var (
	// ErrCheckTimeout is recorded on a Result whose checker did not return
	// before the aggregator's deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound is returned by Aggregator.Check for unknown names.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrCircuitOpen is recorded when the generator circuit is open.
	ErrCircuitOpen = errors.New("health: generator circuit open")
)
