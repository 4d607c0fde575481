// Package permission provides the permission token registry, the derived
// permission [Set] variants and the static role table used by goPortal
// authorization checks.
//
// # Set variants
//
// A [Set] is either [Standard] (literal token membership backed by a 64-bit
// mask) or [Unrestricted] (every token is held). The variant is chosen once,
// when the [Table] is built, so membership checks never special-case role ids.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. Role reference
// data (names, slugs, routes) lives in package rbac.
//
// # What this package must NOT do
//
//   - Access the network, the credential store or Redis.
//   - Import goPortal, rbac or credential.
//   - Mutate a [Table] after construction.
package permission
