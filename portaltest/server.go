package portaltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goPortal/jwt"
	"github.com/MrEthical07/goPortal/rbac"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// User is an account known to the fake backend.
type User struct {
	ID          int64
	Username    string
	Email       string
	Password    string
	DisplayName string
	AccountKind string
	// RoleID zero means the account has no role.
	RoleID int64
}

// Options tunes a [Server]. The zero value is usable.
type Options struct {
	// AccessTTL defaults to 5 minutes.
	AccessTTL time.Duration
	// Users replaces the seeded accounts when non-nil.
	Users []User
	// Roles replaces the seeded role catalog when non-nil.
	Roles []rbac.Role
	// RoleAsID serialises the identity role as a bare id.
	RoleAsID bool
}

// Server is the fake backend. It is safe for concurrent use.
type Server struct {
	*httptest.Server

	tokens   *jwt.Manager
	roleAsID bool

	mu       sync.Mutex
	users    map[int64]User
	roles    []rbac.Role
	refresh  map[string]int64
	issued   []string
	revoked  map[string]bool
	rejectRT bool
	rejectAT bool

	logins    atomic.Int64
	refreshes atomic.Int64
	identity  atomic.Int64
	rolesHits atomic.Int64
}

// DefaultUsers are the seeded accounts, one per dashboard.
func DefaultUsers() []User {
	return []User{
		{ID: 1, Username: "admin", Email: "admin@city.example", Password: "admin1234", DisplayName: "Central Admin", AccountKind: "central_authority", RoleID: 1},
		{ID: 2, Username: "hauler", Email: "ops@hauler.example", Password: "hauler1234", DisplayName: "Hauler Ops", AccountKind: "waste_company", RoleID: 2},
		{ID: 3, Username: "clerk", Email: "clerk@ward7.example", Password: "clerk1234", DisplayName: "Ward 7 Clerk", AccountKind: "municipality", RoleID: 3},
		{ID: 4, Username: "resident", Email: "resident@mail.example", Password: "resident1234", DisplayName: "Resident", AccountKind: "citizen", RoleID: 4},
		{ID: 5, Username: "inspector", Email: "inspector@city.example", Password: "inspector1234", DisplayName: "Inspector", AccountKind: "central_authority", RoleID: 5},
	}
}

// DefaultRoles is the seeded role catalog.
func DefaultRoles() []rbac.Role {
	return []rbac.Role{
		{ID: 1, Name: "Central Authority", Slug: rbac.SlugCentralAuthority, Description: "Program-wide administration"},
		{ID: 2, Name: "Waste Company", Slug: rbac.SlugWasteCompany, Description: "Collection contractor"},
		{ID: 3, Name: "Municipality", Slug: rbac.SlugMunicipality, Description: "Ward-level operations"},
		{ID: 4, Name: "Citizen", Slug: rbac.SlugCitizen, Description: "Resident self-service"},
		{ID: 5, Name: "Auditor", Slug: rbac.SlugAuditor, Description: "Read-only oversight"},
	}
}

// New starts a server. Call Close when done.
func New(opts Options) *Server {
	ttl := opts.AccessTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     ttl,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(uuid.NewString()),
		Issuer:        "portaltest",
	})
	if err != nil {
		panic(err)
	}

	users := opts.Users
	if users == nil {
		users = DefaultUsers()
	}
	roles := opts.Roles
	if roles == nil {
		roles = DefaultRoles()
	}

	s := &Server{
		tokens:   tokens,
		roleAsID: opts.RoleAsID,
		users:    make(map[int64]User, len(users)),
		roles:    append([]rbac.Role(nil), roles...),
		refresh:  make(map[string]int64),
		revoked:  make(map[string]bool),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}

	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login/", s.handleLogin)
		r.Post("/refresh/", s.handleRefresh)
		r.Get("/roles/", s.handleRoles)
		r.With(s.requireAccess).Get("/me/", s.handleMe)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAccess)
		r.HandleFunc("/echo/", s.handleEcho)
		r.Get("/empty/", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/upload/", s.handleUpload)
		r.HandleFunc("/status/{code}/", s.handleStatus)
	})

	return r
}

/*
====================================
CONTROLS
====================================
*/

// AddUser registers or replaces an account.
func (s *Server) AddUser(u User) {
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
}

// ExpireAccess invalidates every access token issued so far. Tokens issued
// afterwards are accepted.
func (s *Server) ExpireAccess() {
	s.mu.Lock()
	for _, id := range s.issued {
		s.revoked[id] = true
	}
	s.issued = s.issued[:0]
	s.mu.Unlock()
}

// RejectRefresh makes the refresh endpoint answer 401.
func (s *Server) RejectRefresh(reject bool) {
	s.mu.Lock()
	s.rejectRT = reject
	s.mu.Unlock()
}

// RejectAllAccess makes every bearer-protected route answer 401, including
// for freshly renewed tokens.
func (s *Server) RejectAllAccess(reject bool) {
	s.mu.Lock()
	s.rejectAT = reject
	s.mu.Unlock()
}

// IssuePair mints a pair for userID without going through login.
func (s *Server) IssuePair(userID int64) (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return "", ""
	}
	access = s.mintLocked(u)
	refresh = uuid.NewString()
	s.refresh[refresh] = u.ID
	return access, refresh
}

// Verifier returns the token manager that signs the server's access tokens.
func (s *Server) Verifier() *jwt.Manager { return s.tokens }

// LoginCount is the number of login requests received.
func (s *Server) LoginCount() int64 { return s.logins.Load() }

// RefreshCount is the number of refresh requests received.
func (s *Server) RefreshCount() int64 { return s.refreshes.Load() }

// IdentityCount is the number of identity requests received.
func (s *Server) IdentityCount() int64 { return s.identity.Load() }

// RolesCount is the number of role catalog requests received.
func (s *Server) RolesCount() int64 { return s.rolesHits.Load() }

func (s *Server) mintLocked(u User) string {
	token, claims, err := s.tokens.CreateAccess(jwt.Subject{
		UserID:      u.ID,
		RoleID:      u.RoleID,
		AccountKind: u.AccountKind,
	})
	if err != nil {
		panic(err)
	}
	s.issued = append(s.issued, claims.ID)
	return token
}

/*
====================================
HELPERS
====================================
*/

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
