package resilience

import "errors"

// Guard rejections. A rejected call never reached the dependency.
var (
	// ErrCircuitOpen is returned while the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit open, dependency failing")

	// ErrRateLimitExceeded is returned when no token is available in time.
	ErrRateLimitExceeded = errors.New("resilience: call rate exceeded")

	// ErrBulkheadFull is returned when every concurrency slot stays taken.
	ErrBulkheadFull = errors.New("resilience: too many concurrent calls")
)

// ErrTimeout is returned when a call ran past its deadline. Unlike the
// rejections, the dependency was called.
var ErrTimeout = errors.New("resilience: call timed out")

// IsRejection reports whether err means a guard refused the call before it
// reached the dependency.
func IsRejection(err error) bool {
	return errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrBulkheadFull)
}
