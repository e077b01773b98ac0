// Package generate defines the generator contract the resolution cache calls
// on a miss, and the adapters that back it.
//
// A Generator turns a request key plus the payloads of its dependency
// artifacts into text. Generators are opaque to the cache: latency, prompt
// content and model choice live behind this interface.
//
// # Adapters
//
//   - Func adapts a plain function.
//   - Chat calls an OpenAI-compatible chat completions endpoint.
//   - Guard runs a generator through a resilience.Executor.
//   - Instrument records spans, metrics and logs via observe.Middleware.
//
// Every failure returned by these adapters satisfies
// errors.Is(err, ErrGenerationFailed).
package generate
