// Package httpapi exposes the advisory pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz              liveness
//	GET  /readyz               readiness
//	GET  /health               detailed health report
//	POST /v1/steps/{kind}      resolve one artifact kind
//	POST /v1/advisories        run the full advisory and merge
//	POST /v1/stage/current     compute the current stage of a stage plan
//	GET  /v1/runs?limit=N      list recorded runs (admin)
//	GET  /v1/runs/{id}         one run with its artifacts and merges (admin)
//	POST /v1/prune             delete stored artifacts older than a duration (admin)
//
// Health routes are unauthenticated. Every /v1 route passes through the
// configured auth.Authenticator and is then checked against the
// auth.Authorizer for its action.
package httpapi
