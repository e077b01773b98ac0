// Package observe provides observability primitives for artifact resolution.
//
// It is a pure instrumentation library: no generation, no storage, no I/O
// beyond exporter setup. The cache resolver and generator adapters consume
// its Tracer, Metrics and Logger.
package observe
