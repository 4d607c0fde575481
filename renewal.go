package goPortal

import (
	"context"
	"net/http"
	"time"

	"github.com/MrEthical07/goPortal/internal/flows"
	"github.com/MrEthical07/goPortal/jwt"
	"go.opentelemetry.io/otel/codes"
)

// Renewer exchanges a refresh credential for a new access credential.
type Renewer interface {
	Renew(ctx context.Context, refresh string) (access string, err error)
}

// RenewerFunc adapts a function to [Renewer].
type RenewerFunc func(ctx context.Context, refresh string) (string, error)

func (f RenewerFunc) Renew(ctx context.Context, refresh string) (string, error) {
	return f(ctx, refresh)
}

// httpRenewer posts {"refresh": …} to the refresh endpoint and reads
// {"access": …}.
type httpRenewer struct {
	client *Client
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

func (r *httpRenewer) Renew(ctx context.Context, refresh string) (string, error) {
	resp, err := r.client.Do(ctx, Request{
		Method: http.MethodPost,
		Target: r.client.config.Backend.RefreshPath,
		Body:   JSONBody(refreshRequest{Refresh: refresh}),
		Public: true,
	})
	if err != nil {
		return "", err
	}

	var out refreshResponse
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	return out.Access, nil
}

// Renew exchanges the stored refresh credential for a new access credential
// and rewrites the store. A failure clears the store and the session and
// returns an error matching [ErrSessionExpired]. When ctx ends first the
// stored pair is kept and the error matches [ErrTransport].
func (c *Client) Renew(ctx context.Context) error {
	if !c.ready() {
		return ErrClientNotReady
	}
	pair, _ := c.store.Read(ctx)
	result := c.renew(ctx, pair.Refresh)
	if result.Failure == flows.RenewalFailureCanceled {
		return &RequestError{
			Kind:    FailureTransport,
			Message: "renewal canceled",
			Cause:   result.Err,
		}
	}
	if result.Failure != flows.RenewalFailureNone {
		return &RequestError{
			Kind:    FailureSessionExpired,
			Message: "session expired",
			Cause:   result.Err,
		}
	}
	return nil
}

// renew runs the renewal flow and records its outcome.
func (c *Client) renew(ctx context.Context, refresh string) flows.RenewalResult {
	ctx, span := c.tracer.Start(ctx, "goportal.renew")
	defer span.End()

	c.metricInc(MetricRenewalAttempt)
	result := c.flow.Renew(ctx, refresh)

	if result.Failure == flows.RenewalFailureCanceled {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, "renewal canceled")
		c.logger.Debug("credential renewal abandoned by caller",
			"request_id", requestIDFromContext(ctx),
			"error", result.Err,
		)
		return result
	}

	if result.Failure != flows.RenewalFailureNone {
		c.metricInc(MetricRenewalFailure)
		if result.Cleared() {
			c.forget()
		}
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, "renewal failed")
		c.logger.Warn("credential renewal failed",
			"reason", renewalFailureReason(result.Failure),
			"request_id", requestIDFromContext(ctx),
			"error", result.Err,
		)
		c.emitAudit(ctx, AuditRenewalFailure, false, nil, result.Err, func() map[string]string {
			return map[string]string{"reason": renewalFailureReason(result.Failure)}
		})
		return result
	}

	c.metricInc(MetricRenewalSuccess)
	c.touchSession(result.Access)
	c.emitAudit(ctx, AuditRenewalSuccess, true, c.identity(), nil, nil)
	return result
}

// exchangeRefresh wraps the renewer with the optional single-flight group.
//
// A shared exchange runs detached from the context of the caller that
// started it, bounded by the backend timeout, so one caller giving up does
// not fail the others. Each caller still stops waiting when its own ctx ends.
func (c *Client) exchangeRefresh(ctx context.Context, refresh string) (string, error) {
	if c.group == nil {
		return c.renewer.Renew(ctx, refresh)
	}

	ch := c.group.DoChan(refresh, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.sharedRenewalTimeout())
		defer cancel()
		return c.renewer.Renew(shared, refresh)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metricInc(MetricRenewalShared)
		}
		if res.Err != nil {
			return "", res.Err
		}
		access, _ := res.Val.(string)
		return access, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

const defaultSharedRenewalTimeout = 30 * time.Second

func (c *Client) sharedRenewalTimeout() time.Duration {
	if c.http != nil && c.http.Timeout > 0 {
		return c.http.Timeout
	}
	if c.config.Backend.Timeout > 0 {
		return c.config.Backend.Timeout
	}
	return defaultSharedRenewalTimeout
}

func renewalFailureReason(kind flows.RenewalFailureKind) string {
	switch kind {
	case flows.RenewalFailureMissingRefresh:
		return "missing_refresh"
	case flows.RenewalFailureExchange:
		return "exchange"
	case flows.RenewalFailureEmptyAccess:
		return "empty_access"
	case flows.RenewalFailurePersist:
		return "persist"
	case flows.RenewalFailureCanceled:
		return "canceled"
	case flows.RenewalFailureSlotChanged:
		return "slot_changed"
	default:
		return "none"
	}
}

// accessExpiry reads the exp claim of a JWT access credential. Opaque
// credentials report the zero time.
func accessExpiry(access string) time.Time {
	exp, _ := jwt.ExpiresAt(access)
	return exp
}
