package rbac

import "sort"

// DefaultRoute is the dashboard path for a role without a known slug.
const DefaultRoute = "/dashboard"

// Role slugs served by a dedicated dashboard variant.
const (
	SlugCentralAuthority = "central_authority"
	SlugWasteCompany     = "waste_company"
	SlugMunicipality     = "municipality"
	SlugCitizen          = "citizen"
	SlugAuditor          = "auditor"
)

var defaultRoutes = map[string]string{
	SlugCentralAuthority: "/central-authority/dashboard",
	SlugWasteCompany:     "/waste-company/dashboard",
	SlugMunicipality:     "/municipality/dashboard",
	SlugCitizen:          "/citizen/dashboard",
	SlugAuditor:          "/auditor/dashboard",
}

// Routes maps role slugs to dashboard paths. The zero value routes every role
// to [DefaultRoute].
type Routes struct {
	bySlug   map[string]string
	fallback string
}

// NewRoutes builds a [Routes] table. An empty fallback means [DefaultRoute].
func NewRoutes(bySlug map[string]string, fallback string) Routes {
	if fallback == "" {
		fallback = DefaultRoute
	}
	copied := make(map[string]string, len(bySlug))
	for slug, path := range bySlug {
		if slug == "" || path == "" {
			continue
		}
		copied[slug] = path
	}
	return Routes{bySlug: copied, fallback: fallback}
}

// DefaultRoutes returns the built-in dashboard table.
func DefaultRoutes() Routes {
	return NewRoutes(defaultRoutes, DefaultRoute)
}

// For returns the dashboard path of role. A nil role, an empty slug or a slug
// without a dashboard resolves to the fallback path.
func (r Routes) For(role *Role) string {
	fallback := r.fallback
	if fallback == "" {
		fallback = DefaultRoute
	}
	if role == nil || role.Slug == "" {
		return fallback
	}
	if path, ok := r.bySlug[role.Slug]; ok {
		return path
	}
	return fallback
}

// Paths returns every dashboard path including the fallback, sorted.
func (r Routes) Paths() []string {
	seen := map[string]bool{r.For(nil): true}
	for _, p := range r.bySlug {
		seen[p] = true
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// RouteFor resolves role against the built-in dashboard table.
func RouteFor(role *Role) string {
	return DefaultRoutes().For(role)
}

// DefaultRouteTable returns a copy of the built-in slug -> dashboard table.
func DefaultRouteTable() map[string]string {
	out := make(map[string]string, len(defaultRoutes))
	for slug, path := range defaultRoutes {
		out[slug] = path
	}
	return out
}
