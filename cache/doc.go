// Package cache implements the resolution cache that sits in front of every
// artifact generator.
//
// Resolver.Resolve answers a (kind, key) request from three tiers in order:
//
//  1. the request Scope, authoritative for the rest of the invocation;
//  2. the persistent Store, restricted to records no older than the kind's
//     max-age in Policy;
//  3. the kind's generator, after every declared dependency has itself been
//     resolved. The result is persisted best-effort and placed in the Scope.
//
// Store failures never fail a resolution: a failed lookup falls through to
// generation and a failed insert leaves the record without an id. Generator
// failures are returned and never cached.
//
// Concurrent resolutions of the same (kind, key) from different scopes share
// one tier 2/3 execution.
package cache
