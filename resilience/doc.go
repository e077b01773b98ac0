// Package resilience guards calls to slow or flaky external dependencies,
// chiefly the text generators behind the resolution cache.
//
// # Patterns
//
//   - Circuit Breaker: stops calling a dependency after repeated failures
//     and tries it again after a cool-down.
//   - Rate Limiter: token bucket bounding call rate.
//   - Bulkhead: bounds concurrent calls.
//   - Timeout: bounds the duration of one call.
//
// There is no retry pattern. A failed generation is reported
// to the caller, which decides whether to try again.
//
// # Usage
//
//	exec := resilience.NewExecutorFromConfig(resilience.ExecutorConfig{
//	    RatePerSecond: 2,
//	    Burst:         4,
//	    MaxConcurrent: 4,
//	    MaxFailures:   5,
//	    ResetTimeout:  time.Minute,
//	    Timeout:       90 * time.Second,
//	})
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return callModel(ctx)
//	})
package resilience
