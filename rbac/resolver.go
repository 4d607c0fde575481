package rbac

import "github.com/MrEthical07/goPortal/permission"

// Decision is the outcome of resolving a role.
type Decision struct {
	Role        *Role
	Permissions permission.Set
	Route       string
}

// Allows reports whether the decision grants token.
func (d Decision) Allows(token string) bool {
	if d.Permissions == nil {
		return false
	}
	return d.Permissions.Has(token)
}

// Resolver maps roles to decisions. It holds no mutable state.
type Resolver struct {
	table  *permission.Table
	routes Routes
}

// NewResolver creates a [Resolver]. A nil table means the default table.
func NewResolver(table *permission.Table, routes Routes) *Resolver {
	if table == nil {
		table = permission.DefaultTable()
	}
	return &Resolver{table: table, routes: routes}
}

// DefaultResolver uses the default permission table and dashboard routes.
func DefaultResolver() *Resolver {
	return NewResolver(nil, DefaultRoutes())
}

// Resolve computes the permission set and the dashboard route of role. A nil
// role yields the empty set and the fallback route.
func (r *Resolver) Resolve(role *Role) Decision {
	d := Decision{
		Permissions: permission.Empty(),
		Route:       r.routes.For(role),
	}
	if role == nil {
		return d
	}
	copied := *role
	d.Role = &copied
	d.Permissions = r.table.For(role.ID)
	return d
}

// HasPermission reports whether roleID holds token.
func (r *Resolver) HasPermission(roleID int64, token string) bool {
	return r.table.Has(roleID, token)
}

// Table returns the permission table backing r.
func (r *Resolver) Table() *permission.Table {
	return r.table
}

// Routes returns the dashboard table backing r.
func (r *Resolver) Routes() Routes {
	return r.routes
}
