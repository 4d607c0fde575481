package portaltest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/MrEthical07/goPortal/rbac"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type userContextKey struct{}

func userFromContext(ctx context.Context) User {
	u, _ := ctx.Value(userContextKey{}).(User)
	return u
}

// requireAccess accepts a valid, unrevoked bearer token of a known user.
func (s *Server) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		claims, err := s.tokens.ParseAccess(token)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type")
			return
		}

		s.mu.Lock()
		reject := s.rejectAT || s.revoked[claims.ID]
		u, ok := s.users[claims.UID]
		s.mu.Unlock()
		if reject || !ok {
			writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey{}, u)))
	})
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.logins.Add(1)

	var in loginBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Username == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if (u.Username == in.Username || u.Email == in.Username) && u.Password == in.Password {
			refresh := uuid.NewString()
			s.refresh[refresh] = u.ID
			writeJSON(w, http.StatusOK, map[string]any{
				"access":  s.mintLocked(u),
				"refresh": refresh,
				"user":    s.identityLocked(u),
			})
			return
		}
	}
	writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshes.Add(1)

	var in struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"refresh": "This field is required."})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.refresh[in.Refresh]
	u, known := s.users[id]
	if s.rejectRT || !ok || !known {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": s.mintLocked(u)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.identity.Add(1)
	u := userFromContext(r.Context())

	s.mu.Lock()
	body := s.identityLocked(u)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRoles(w http.ResponseWriter, _ *http.Request) {
	s.rolesHits.Add(1)
	s.mu.Lock()
	roles := append([]rbac.Role(nil), s.roles...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"results": roles})
}

func (s *Server) identityLocked(u User) map[string]any {
	out := map[string]any{
		"id":           u.ID,
		"display_name": u.DisplayName,
		"email":        u.Email,
		"username":     u.Username,
		"account_kind": u.AccountKind,
		"role":         nil,
	}
	if u.RoleID == 0 {
		return out
	}
	if s.roleAsID {
		out["role"] = u.RoleID
		return out
	}
	for _, role := range s.roles {
		if role.ID == u.RoleID {
			out["role"] = role
			return out
		}
	}
	out["role"] = u.RoleID
	return out
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	writeJSON(w, http.StatusOK, map[string]any{
		"method":       r.Method,
		"content_type": r.Header.Get("Content-Type"),
		"body":         string(data),
		"user_id":      userFromContext(r.Context()).ID,
		"request_id":   r.Header.Get("X-Request-ID"),
		"user_agent":   r.Header.Get("User-Agent"),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	files := 0
	for _, fhs := range r.MultipartForm.File {
		files += len(fhs)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"files":        files,
		"fields":       len(r.MultipartForm.Value),
		"content_type": r.Header.Get("Content-Type"),
	})
}

// handleStatus answers with the status in the path. The message field name
// and text come from the field and msg query parameters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code < 200 || code > 599 {
		writeDetail(w, http.StatusBadRequest, "bad status code")
		return
	}
	field := r.URL.Query().Get("field")
	if field == "" {
		writeJSON(w, code, nil)
		return
	}
	writeJSON(w, code, map[string]string{field: r.URL.Query().Get("msg")})
}
