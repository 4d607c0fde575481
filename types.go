package goPortal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	internalaudit "github.com/MrEthical07/goPortal/internal/audit"
	internalmetrics "github.com/MrEthical07/goPortal/internal/metrics"
	"github.com/MrEthical07/goPortal/permission"
	"github.com/MrEthical07/goPortal/rbac"
)

/*
====================================
IDENTITY
====================================
*/

// AccountKind is the portal an account belongs to.
type AccountKind string

const (
	AccountCentralAuthority AccountKind = "central_authority"
	AccountWasteCompany     AccountKind = "waste_company"
	AccountMunicipality     AccountKind = "municipality"
	AccountCitizen          AccountKind = "citizen"
)

// ParseAccountKind validates s against the fixed account kinds.
func ParseAccountKind(s string) (AccountKind, error) {
	switch k := AccountKind(s); k {
	case AccountCentralAuthority, AccountWasteCompany, AccountMunicipality, AccountCitizen:
		return k, nil
	default:
		return "", fmt.Errorf("unknown account kind %q", s)
	}
}

// UnmarshalText rejects unknown kinds. An empty value decodes to the zero
// kind.
func (k *AccountKind) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*k = ""
		return nil
	}
	parsed, err := ParseAccountKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Identity is the read-only snapshot returned by the identity endpoint.
type Identity struct {
	ID          int64       `json:"id"`
	DisplayName string      `json:"display_name"`
	Email       string      `json:"email,omitempty"`
	Username    string      `json:"username,omitempty"`
	AccountKind AccountKind `json:"account_kind"`
	Role        *rbac.Role  `json:"role"`
}

// UnmarshalJSON accepts the role either as an object, as a bare role id or
// as null.
func (i *Identity) UnmarshalJSON(data []byte) error {
	type identityAlias Identity
	var raw struct {
		identityAlias
		Role json.RawMessage `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Identity(raw.identityAlias)
	i.Role = nil

	role := bytes.TrimSpace(raw.Role)
	switch {
	case len(role) == 0 || bytes.Equal(role, []byte("null")):
	case role[0] == '{':
		var r rbac.Role
		if err := json.Unmarshal(role, &r); err != nil {
			return fmt.Errorf("identity role: %w", err)
		}
		i.Role = &r
	default:
		var id int64
		if err := json.Unmarshal(role, &id); err != nil {
			return fmt.Errorf("identity role: %w", err)
		}
		i.Role = &rbac.Role{ID: id}
	}
	return nil
}

// Label returns the first non-empty of display name, email and username.
func (i Identity) Label() string {
	switch {
	case i.DisplayName != "":
		return i.DisplayName
	case i.Email != "":
		return i.Email
	default:
		return i.Username
	}
}

/*
====================================
SESSION
====================================
*/

// Session is the resolved identity of the stored credential pair. It is
// torn down together with the pair.
type Session struct {
	Identity    Identity
	Role        *rbac.Role
	Permissions permission.Set
	Route       string
	// AccessExpiresAt is read from the access credential when it is a JWT.
	// The zero time means unknown.
	AccessExpiresAt time.Time
}

// HasPermission reports whether the session's role grants token.
func (s *Session) HasPermission(token string) bool {
	if s == nil || s.Permissions == nil {
		return false
	}
	return s.Permissions.Has(token)
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Role != nil {
		r := *s.Role
		out.Role = &r
		out.Identity.Role = &r
	}
	return &out
}

/*
====================================
REQUEST / RESPONSE
====================================
*/

// Request describes one originating call made through [Client.Do].
type Request struct {
	Method string
	// Target is a path relative to the backend base URL, or an absolute URL.
	Target string
	Body   Body
	// Public marks calls that must not carry a bearer credential and are
	// never renewed.
	Public bool
	Header http.Header
}

// Response is a successful (2xx) answer.
type Response struct {
	Status int
	Header http.Header
	// Body is nil for an empty answer.
	Body []byte
}

// Empty reports an answer without payload.
func (r *Response) Empty() bool {
	return r == nil || len(r.Body) == 0
}

// Decode unmarshals the JSON payload into v. An empty payload leaves v
// untouched.
func (r *Response) Decode(v any) error {
	if r.Empty() {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

/*
====================================
AUDIT / METRICS ALIASES
====================================
*/

// AuditEvent is a structured session lifecycle record.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the client's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON-encoded event per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs events through a structured logger.
type SlogSink = internalaudit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink] logging through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// Audit event types.
const (
	AuditLoginSuccess      = "login_success"
	AuditLoginFailure      = "login_failure"
	AuditLoginRoleMismatch = "login_role_mismatch"
	AuditRenewalSuccess    = "renewal_success"
	AuditRenewalFailure    = "renewal_failure"
	AuditSessionExpired    = "session_expired"
	AuditResumeSuccess     = "resume_success"
	AuditResumeRejected    = "resume_rejected"
	AuditLogout            = "logout"
)

// MetricID identifies a counter or histogram of the in-process metrics.
type MetricID = internalmetrics.MetricID

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	MetricCallSuccess          = internalmetrics.MetricCallSuccess
	MetricCallHardFailure      = internalmetrics.MetricCallHardFailure
	MetricCallTransportFailure = internalmetrics.MetricCallTransportFailure
	MetricRenewalAttempt       = internalmetrics.MetricRenewalAttempt
	MetricRenewalSuccess       = internalmetrics.MetricRenewalSuccess
	MetricRenewalFailure       = internalmetrics.MetricRenewalFailure
	MetricRenewalShared        = internalmetrics.MetricRenewalShared
	MetricReplayRejected       = internalmetrics.MetricReplayRejected
	MetricSessionExpired       = internalmetrics.MetricSessionExpired
	MetricLoginSuccess         = internalmetrics.MetricLoginSuccess
	MetricLoginFailure         = internalmetrics.MetricLoginFailure
	MetricLoginRoleMismatch    = internalmetrics.MetricLoginRoleMismatch
	MetricResumeSuccess        = internalmetrics.MetricResumeSuccess
	MetricResumeNoSession      = internalmetrics.MetricResumeNoSession
	MetricResumeRejected       = internalmetrics.MetricResumeRejected
	MetricResumeUnreachable    = internalmetrics.MetricResumeUnreachable
	MetricLogout               = internalmetrics.MetricLogout
	MetricRolesFetched         = internalmetrics.MetricRolesFetched
	MetricCallLatency          = internalmetrics.MetricCallLatency
)
