package goPortal

import (
	"context"
	"errors"
	"time"
)

// AuditErrorCode is the coarse failure class recorded on audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRoleMismatch       AuditErrorCode = "role_mismatch"
	auditErrSessionExpired     AuditErrorCode = "session_expired"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrTransport          AuditErrorCode = "transport"
	auditErrMalformed          AuditErrorCode = "malformed_response"
	auditErrRejected           AuditErrorCode = "rejected"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (c *Client) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	ident *Identity,
	err error,
	metadataBuilder func() map[string]string,
) {
	if c == nil || c.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if ident != nil {
		event.UserID = ident.ID
		event.AccountKind = string(ident.AccountKind)
		if ident.Role != nil {
			event.RoleID = ident.Role.ID
		}
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	c.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var reqErr *RequestError
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrRoleMismatch):
		return auditErrRoleMismatch
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrTransport):
		return auditErrTransport
	case errors.Is(err, ErrMalformedResponse):
		return auditErrMalformed
	case errors.As(err, &reqErr):
		return auditErrRejected
	default:
		return auditErrInternal
	}
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Client) metricObserve(id MetricID, d time.Duration) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Observe(id, d)
}

// MetricsSnapshot returns a copy of the in-process metrics.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{}
	}
	return c.metrics.Snapshot()
}

// AuditDropped reports how many audit events were lost to backpressure.
func (c *Client) AuditDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.audit.Dropped()
}
