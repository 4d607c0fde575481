// Package flows contains pure-function orchestrators for every Client operation.
//
// Each flow function (RunCall, RunRenewal, RunLogin, RunResume, RunLogout)
// accepts a typed dependency struct and returns a result carrying a failure
// kind, without side-effects beyond those dependencies. The root Client maps
// failure kinds to its exported errors.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, the HTTP sender and
// the renewal exchange. They do NOT own any of these resources; ownership stays
// with the Client.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goPortal (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows
