// Package jwt issues and verifies goPortal access tokens and reads the expiry
// of tokens the client holds but cannot verify.
//
// [Manager] is used by the test backend and by Go dashboard servers that
// share the signing key with the issuing backend. [Peek] is the client-side
// helper: it decodes claims without verifying the signature and must never be
// used to make an authorization decision.
package jwt
