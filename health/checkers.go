package health

import (
	"context"
	"time"

	"github.com/jonwraymond/cropadvisor/resilience"
)

// Pinger is satisfied by the artifact stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker reports Unhealthy when the store cannot be reached.
func StoreChecker(p Pinger) Checker {
	return CheckFunc(func(ctx context.Context) Result {
		if p == nil {
			return Degraded("no artifact store configured")
		}
		if err := p.Ping(ctx); err != nil {
			return Unhealthy("artifact store unreachable", err)
		}
		return Healthy("artifact store reachable")
	})
}

// CircuitChecker reports the state of the generator circuit breaker. A
// nil breaker is always healthy.
func CircuitChecker(cb *resilience.CircuitBreaker) Checker {
	return CheckFunc(func(context.Context) Result {
		if cb == nil {
			return Healthy("no circuit breaker configured")
		}
		snap := cb.Snapshot()
		details := map[string]any{"state": snap.State.String(), "failures": snap.Failures}
		if !snap.RetryAt.IsZero() {
			details["retry_at"] = snap.RetryAt.UTC().Format(time.RFC3339)
		}
		switch snap.State {
		case resilience.StateOpen:
			r := Degraded("generator circuit open; serving stored artifacts only")
			r.Error = ErrCircuitOpen
			return r.WithDetails(details)
		case resilience.StateHalfOpen:
			return Degraded("generator circuit half-open").WithDetails(details)
		default:
			return Healthy("generator circuit closed").WithDetails(details)
		}
	})
}
