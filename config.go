package goPortal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goPortal/credential"
	"github.com/MrEthical07/goPortal/rbac"
)

// Config is the complete client configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Store   StoreConfig   `mapstructure:"store"`
	Renewal RenewalConfig `mapstructure:"renewal"`
	Portal  PortalConfig  `mapstructure:"portal"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

/*
====================================
BACKEND CONFIG
====================================
*/

// BackendConfig describes the HTTP surface the client talks to.
type BackendConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	LoginPath        string        `mapstructure:"login_path"`
	RefreshPath      string        `mapstructure:"refresh_path"`
	MePath           string        `mapstructure:"me_path"`
	RolesPath        string        `mapstructure:"roles_path"`
	Timeout          time.Duration `mapstructure:"timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	MaxResponseBytes int64         `mapstructure:"max_response_bytes"`

	// TrustedOrigins lists extra scheme://host origins that receive the
	// bearer credential. The BaseURL origin is always trusted.
	TrustedOrigins []string `mapstructure:"trusted_origins"`
}

/*
====================================
STORE CONFIG
====================================
*/

// Store kinds accepted by StoreConfig.Kind.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// StoreConfig selects the credential store built when none is injected.
type StoreConfig struct {
	Kind          string        `mapstructure:"kind"`
	FilePath      string        `mapstructure:"file_path"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisKey      string        `mapstructure:"redis_key"`
	RedisTTL      time.Duration `mapstructure:"redis_ttl"`
}

/*
====================================
RENEWAL / PORTAL CONFIG
====================================
*/

// RenewalConfig controls the renewal exchange.
type RenewalConfig struct {
	// SingleFlight makes concurrent renewals of the same refresh credential
	// share one exchange.
	SingleFlight bool `mapstructure:"single_flight"`
}

// PortalConfig describes which identities this portal accepts and where
// they land.
type PortalConfig struct {
	// AccountKind, when set, is the account kind every session must have.
	AccountKind string `mapstructure:"account_kind"`
	// AllowedRoleIDs, when non-empty, restricts sessions to these roles.
	AllowedRoleIDs []int64 `mapstructure:"allowed_role_ids"`
	// DefaultRoute is the dashboard of a role without a known slug.
	DefaultRoute string `mapstructure:"default_route"`
	// Routes overrides the built-in slug -> dashboard table when non-empty.
	Routes map[string]string `mapstructure:"routes"`
}

/*
====================================
AUDIT / METRICS / LOGGING CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

// LoggingConfig configures the logger built by [NewLogger].
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:          "http://localhost:8000",
			LoginPath:        "/auth/login/",
			RefreshPath:      "/auth/refresh/",
			MePath:           "/auth/me/",
			RolesPath:        "/auth/roles/",
			Timeout:          15 * time.Second,
			UserAgent:        "goportal/" + Version,
			MaxResponseBytes: 4 << 20,
		},
		Store: StoreConfig{
			Kind:     StoreMemory,
			RedisKey: credential.DefaultKey,
		},
		Renewal: RenewalConfig{
			SingleFlight: false,
		},
		Portal: PortalConfig{
			DefaultRoute: rbac.DefaultRoute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Backend.TrustedOrigins != nil {
		out.Backend.TrustedOrigins = append([]string(nil), cfg.Backend.TrustedOrigins...)
	}
	if cfg.Portal.AllowedRoleIDs != nil {
		out.Portal.AllowedRoleIDs = append([]int64(nil), cfg.Portal.AllowedRoleIDs...)
	}
	if cfg.Portal.Routes != nil {
		out.Portal.Routes = make(map[string]string, len(cfg.Portal.Routes))
		for k, v := range cfg.Portal.Routes {
			out.Portal.Routes[k] = v
		}
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	// Backend
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("Backend BaseURL must be an absolute http(s) URL")
	}
	for name, p := range map[string]string{
		"LoginPath":   c.Backend.LoginPath,
		"RefreshPath": c.Backend.RefreshPath,
		"MePath":      c.Backend.MePath,
		"RolesPath":   c.Backend.RolesPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("Backend %s must start with /", name)
		}
	}
	if c.Backend.Timeout < 0 {
		return errors.New("Backend Timeout must be >= 0")
	}
	if c.Backend.MaxResponseBytes <= 0 {
		return errors.New("Backend MaxResponseBytes must be > 0")
	}
	for _, origin := range c.Backend.TrustedOrigins {
		if _, err := parseOrigin(origin); err != nil {
			return fmt.Errorf("Backend TrustedOrigins: %w", err)
		}
	}

	// Store
	switch c.Store.Kind {
	case StoreMemory:
	case StoreFile:
		if c.Store.FilePath == "" {
			return errors.New("Store FilePath is required for the file store")
		}
	case StoreRedis:
		if c.Store.RedisTTL < 0 {
			return errors.New("Store RedisTTL must be >= 0")
		}
	default:
		return fmt.Errorf("Store Kind %q must be memory, file or redis", c.Store.Kind)
	}

	// Portal
	if c.Portal.AccountKind != "" {
		if _, err := ParseAccountKind(c.Portal.AccountKind); err != nil {
			return fmt.Errorf("Portal AccountKind: %w", err)
		}
	}
	if c.Portal.DefaultRoute != "" && !strings.HasPrefix(c.Portal.DefaultRoute, "/") {
		return errors.New("Portal DefaultRoute must start with /")
	}
	for slug, path := range c.Portal.Routes {
		if slug == "" || !strings.HasPrefix(path, "/") {
			return fmt.Errorf("Portal Routes entry %q -> %q is invalid", slug, path)
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

func (c *Config) routes() rbac.Routes {
	if len(c.Portal.Routes) == 0 {
		return rbac.NewRoutes(rbac.DefaultRouteTable(), c.Portal.DefaultRoute)
	}
	return rbac.NewRoutes(c.Portal.Routes, c.Portal.DefaultRoute)
}

// parseOrigin normalizes an origin to lower-case scheme://host:port.
func parseOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%q must be an absolute http(s) origin", raw)
	}
	if u.Path != "" || u.RawQuery != "" {
		return "", fmt.Errorf("%q must not carry a path or query", raw)
	}
	return originKey(u), nil
}

func originKey(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	port := u.Port()
	if port == "" {
		port = "80"
		if scheme == "https" {
			port = "443"
		}
	}
	return scheme + "://" + strings.ToLower(u.Hostname()) + ":" + port
}
