// Package pipeline coordinates advisory steps over the resolution cache.
//
// A Coordinator owns the request scope of each top-level invocation: it
// creates a fresh scope per call, records a run, resolves the requested step
// (which resolves the step's dependencies through the same scope) and
// discards the scope when the call returns.
//
// The stage generator is wrapped so every generated stage plan carries a
// current-stage section computed from its own dates. Because stored plans
// may be up to two days old, the current stage is recomputed for today on
// every read and returned beside the record; stored payloads are never
// rewritten.
//
// Advise runs the full advisory: soil, weather, stage, nutrient, pest,
// disease and irrigation, followed by the merge generator. Merge output is
// returned to the caller and not cached.
package pipeline
