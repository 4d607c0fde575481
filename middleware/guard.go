package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goPortal/jwt"
	"github.com/MrEthical07/goPortal/rbac"
)

// Verifier validates an access token. [*jwt.Manager] satisfies it.
type Verifier interface {
	ParseAccess(token string) (*jwt.AccessClaims, error)
}

// RoleLookup finds reference data for a role id. [*rbac.Catalog] provides
// one through its ByID method.
type RoleLookup func(id int64) (rbac.Role, bool)

// Principal is the verified caller of a request.
type Principal struct {
	UserID      int64
	AccountKind string
	Decision    rbac.Decision
}

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by [RequireSession].
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// RequireSession verifies the bearer token and resolves the role it names.
// A role id unknown to lookup resolves with id only, which routes to the
// fallback dashboard; a nil resolver uses the built-in tables.
func RequireSession(verifier Verifier, lookup RoleLookup, resolver *rbac.Resolver) func(http.Handler) http.Handler {
	if resolver == nil {
		resolver = rbac.DefaultResolver()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.ParseAccess(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			var role *rbac.Role
			if claims.Role != 0 {
				role = &rbac.Role{ID: claims.Role}
				if lookup != nil {
					if found, ok := lookup(claims.Role); ok {
						role = &found
					}
				}
			}

			p := &Principal{
				UserID:      claims.UID,
				AccountKind: claims.AccountKind,
				Decision:    resolver.Resolve(role),
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
