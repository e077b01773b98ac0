// Package health reports whether the advisory service can answer requests.
//
// A Checker checks one dependency and returns a Result with a Status of
// Healthy, Degraded or Unhealthy. The Aggregator runs every registered
// checker in parallel under a shared timeout and folds the results into a
// single Status.
//
// Two checkers cover the service's own dependencies: StoreChecker pings
// the artifact store, and CircuitChecker reports the generator circuit.
// An open circuit is Degraded rather than Unhealthy because stored
// artifacts can still be served while generation is blocked.
//
// RegisterHandlers mounts /healthz (liveness), /readyz (readiness) and
// /health (detailed JSON report) on a mux.
package health
