// Package portaltest runs an in-process fake of the dashboard backend.
//
// The server speaks the four auth endpoints (login, refresh, identity, roles)
// plus a few bearer-protected /api/ routes, signs HS256 access tokens with
// the jwt package and hands out opaque uuid refresh tokens. Tests steer it
// with [Server.ExpireAccess], [Server.RejectRefresh] and
// [Server.RejectAllAccess] and read [Server.RefreshCount] afterwards.
//
// # What this package must NOT do
//
//   - import the root goPortal package (root tests import this one)
//   - persist anything outside process memory
package portaltest
