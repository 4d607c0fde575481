package middleware

import "net/http"

// RequireDashboard only lets through principals whose dashboard is route.
// Everyone else is redirected to their own dashboard variant.
func RequireDashboard(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if p.Decision.Route != route {
				http.Redirect(w, r, p.Decision.Route, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
