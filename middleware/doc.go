// Package middleware exposes HTTP middleware for a dashboard server that
// receives the portal's bearer access tokens.
//
// # Guards
//
//   - [RequireSession] verifies the bearer token and resolves its role into
//     an [rbac.Decision] stored in the request context.
//   - [RequirePermission] rejects principals whose role lacks a token.
//   - [RequireDashboard] redirects principals to their own dashboard variant.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into verifier and resolver calls.
// It does NOT decide permissions itself; every decision comes from
// [rbac.Resolver].
//
// # What this package must NOT do
//
//   - Issue or renew tokens.
//   - Touch a credential store.
//   - Grant anything when the principal is missing (fail closed).
package middleware
