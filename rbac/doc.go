// Package rbac resolves a role into its permission set and the single
// dashboard route a user of that role may reach.
//
// Role reference data is fetched from the backend once per client lifetime and
// wrapped in an immutable [Catalog]. Identities reference roles by id only; the
// [Resolver] turns a role into a [Decision] without any I/O.
package rbac
