package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519 keys.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

var (
	// ErrInvalidConfig wraps every [NewManager] validation failure.
	ErrInvalidConfig = errors.New("invalid jwt config")
	// ErrNoSigningKey is returned by [Manager.CreateAccess] on a verify-only manager.
	ErrNoSigningKey = errors.New("manager has no signing key")
	// ErrUnknownKeyID is returned when a token names a key the manager does not hold.
	ErrUnknownKeyID = errors.New("unknown kid")
)

// Config describes the keys and validation rules of a [Manager].
//
// HS256 uses PrivateKey as the shared secret for both signing and
// verification. Ed25519 signs with PrivateKey and verifies with PublicKey, or
// with VerifyKeys selected by the token's kid header. Keys are raw bytes or
// PEM.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Manager issues and verifies access tokens. Keys are decoded once by
// [NewManager].
type Manager struct {
	config Config
	method jwt.SigningMethod
	parser *jwt.Parser

	signKey    any
	verifyKey  any
	verifyKeys map[string]any
}

// Subject identifies the account an access token is issued to.
type Subject struct {
	UserID      int64
	RoleID      int64
	AccountKind string
}

// AccessClaims are the claims carried by a goPortal access token. The token
// id (jti) lives in RegisteredClaims.ID.
type AccessClaims struct {
	UID         int64  `json:"uid"`
	Role        int64  `json:"role,omitempty"`
	AccountKind string `json:"kind,omitempty"`
	jwt.RegisteredClaims
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// NewManager validates cfg, decodes its keys and creates a [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, invalidConfig("AccessTTL must be > 0")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, invalidConfig("Leeway must be within [0, 2m]")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, invalidConfig("MaxFutureIAT must be within (0, 24h]")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, invalidConfig("hs256 requires a shared secret")
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
		if len(cfg.VerifyKeys) > 0 {
			m.verifyKeys = make(map[string]any, len(cfg.VerifyKeys))
			for kid, key := range cfg.VerifyKeys {
				if strings.TrimSpace(kid) == "" {
					return nil, invalidConfig("verify key map contains empty kid")
				}
				m.verifyKeys[kid] = key
			}
		}
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, invalidConfig("%v", err)
			}
			m.signKey = priv
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, invalidConfig("%v", err)
			}
			m.verifyKey = pub
		}
		if len(cfg.VerifyKeys) == 0 && m.verifyKey == nil {
			return nil, invalidConfig("ed25519 requires a public key or a verify key set")
		}
		if len(cfg.VerifyKeys) > 0 {
			m.verifyKeys = make(map[string]any, len(cfg.VerifyKeys))
			for kid, key := range cfg.VerifyKeys {
				if strings.TrimSpace(kid) == "" {
					return nil, invalidConfig("verify key map contains empty kid")
				}
				pub, err := parseEdPublicKey(key)
				if err != nil {
					return nil, invalidConfig("verify key %q: %v", kid, err)
				}
				m.verifyKeys[kid] = pub
			}
		}
	default:
		return nil, invalidConfig("unsupported signing method %q", cfg.SigningMethod)
	}
	if cfg.KeyID != "" && m.verifyKeys != nil {
		if _, ok := m.verifyKeys[cfg.KeyID]; !ok {
			return nil, invalidConfig("KeyID %q is not present in VerifyKeys", cfg.KeyID)
		}
	}

	options := []jwt.ParserOption{jwt.WithValidMethods([]string{m.method.Alg()})}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(options...)

	return m, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}

// CreateAccess signs a new access token for sub. Every token gets a fresh
// token id; the returned claims carry it.
func (m *Manager) CreateAccess(sub Subject) (string, *AccessClaims, error) {
	if m.signKey == nil {
		return "", nil, ErrNoSigningKey
	}

	now := time.Now()
	claims := &AccessClaims{
		UID:         sub.UserID,
		Role:        sub.RoleID,
		AccountKind: sub.AccountKind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(sub.UserID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseAccess verifies tokenStr and returns its claims. It fails when the
// signature, algorithm, key id, issuer, audience or time claims do not
// validate.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	token, err := m.parser.ParseWithClaims(tokenStr, &AccessClaims{}, m.keyFor)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(time.Now().Add(m.config.MaxFutureIAT)) {
		return nil, errors.New("token iat too far in the future")
	}
	return claims, nil
}

// keyFor selects the verification key of t.
func (m *Manager) keyFor(t *jwt.Token) (any, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	kid, _ := t.Header["kid"].(string)
	switch {
	case m.verifyKeys != nil:
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.verifyKeys[kid]
		if !ok {
			return nil, ErrUnknownKeyID
		}
		return key, nil
	case m.config.KeyID != "":
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != m.config.KeyID {
			return nil, ErrUnknownKeyID
		}
	}

	if m.verifyKey == nil {
		return nil, ErrUnknownKeyID
	}
	return m.verifyKey, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
