// Package app assembles a running cropadvisor from a config.Config and
// implements the command-line subcommands.
//
// New wires the SQLite store, the observer, the guarded and instrumented
// chat generators, the resolver, the pipeline coordinator, the health
// aggregator and the HTTP authenticator. Run dispatches the serve, run,
// stage and prune subcommands.
package app
