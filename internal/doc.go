// Package internal holds the private building blocks of goPortal.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - cli: the goportal command tree
//   - flows: state machines for calls, renewal, login, resume and logout
//   - metrics: lock-free counters and the call latency histogram
//
// # What this package must NOT do
//
//   - Export types that appear in the public goPortal API.
//   - Be imported by any package outside the goPortal module.
package internal
