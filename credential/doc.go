// Package credential provides the durable slot that holds the client's
// short-lived/long-lived credential pair between process restarts.
//
// # Storage model
//
// A [Store] owns exactly one slot under one fixed key. The slot holds either a
// complete [Pair] or nothing: partial pairs are never persisted and a malformed
// stored value reads back as absent. Backends are provided for process memory
// ([MemoryStore]), the local filesystem ([FileStore]) and Redis ([RedisStore]).
//
// # Architecture boundaries
//
// This package is pure storage. It does NOT issue network calls to the
// credential backend, inspect token contents, or track expiry; expiry is
// detected reactively by the request dispatcher.
//
// # What this package must NOT do
//
//   - Import goPortal, jwt, permission, or rbac (no upward imports).
//   - Expose partially written values to concurrent readers.
//   - Return errors from Read.
package credential
