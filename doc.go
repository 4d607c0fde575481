// Package goPortal is the session and authorization core of the waste
// management dashboard client.
//
// A [Client] sends authorized calls to the backend, renews the short-lived
// access credential when a call is answered with 401, replays the call once,
// and resolves the authenticated identity into a role, a permission set and a
// single dashboard route.
//
// # Architecture boundaries
//
// goPortal is the public surface. It exposes [Client], [Builder], [Config] and
// value types ([Session], [Identity], [Request], [Response]). Credential
// persistence lives in credential, role reference data and routing in rbac,
// the permission table in permission. Flow orchestration and audit dispatch
// live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Hold credentials anywhere but the injected [credential.Store].
//   - Retry a call more than once or renew more than once per call.
//   - Import any sub-package that re-imports goPortal (no import cycles).
//
// # Concurrency
//
// Client methods are safe for concurrent use after [Builder.Build]. Each call
// runs its own state machine; concurrent 401s each renew unless
// RenewalConfig.SingleFlight is set.
package goPortal
