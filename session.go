package goPortal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/MrEthical07/goPortal/credential"
	"github.com/MrEthical07/goPortal/internal/flows"
	"github.com/MrEthical07/goPortal/rbac"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

/*
====================================
LOGIN OPTIONS
====================================
*/

// expectation is what an identity must satisfy to open a session.
type expectation struct {
	kind  AccountKind
	roles []int64
}

func (e expectation) check(ident Identity) error {
	if e.kind != "" && ident.AccountKind != e.kind {
		return fmt.Errorf("%w: account kind %q, portal expects %q", ErrRoleMismatch, ident.AccountKind, e.kind)
	}
	if len(e.roles) > 0 {
		if ident.Role == nil {
			return fmt.Errorf("%w: account has no role", ErrRoleMismatch)
		}
		if !slices.Contains(e.roles, ident.Role.ID) {
			return fmt.Errorf("%w: role %d is not allowed here", ErrRoleMismatch, ident.Role.ID)
		}
	}
	return nil
}

// LoginOption narrows what a login accepts.
type LoginOption func(*expectation)

// ExpectAccountKind rejects identities of any other account kind.
func ExpectAccountKind(kind AccountKind) LoginOption {
	return func(e *expectation) {
		e.kind = kind
	}
}

// ExpectRoles rejects identities whose role is not one of ids.
func ExpectRoles(ids ...int64) LoginOption {
	return func(e *expectation) {
		e.roles = append([]int64(nil), ids...)
	}
}

func (c *Client) defaultExpectation() expectation {
	return expectation{
		kind:  AccountKind(c.config.Portal.AccountKind),
		roles: c.config.Portal.AllowedRoleIDs,
	}
}

/*
====================================
LOGIN
====================================
*/

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login exchanges identifier and password for a credential pair, stores it
// and resolves the identity it belongs to. On any failure after the pair was
// stored the store is cleared, so no partial session is left behind.
func (c *Client) Login(ctx context.Context, identifier, password string, opts ...LoginOption) (*Session, error) {
	if !c.ready() {
		return nil, ErrClientNotReady
	}
	if identifier == "" || password == "" {
		return nil, fmt.Errorf("%w: identifier and password are required", ErrInvalidCredentials)
	}

	expect := c.defaultExpectation()
	for _, opt := range opts {
		if opt != nil {
			opt(&expect)
		}
	}

	ctx, _ = ensureRequestID(ctx)
	ctx, span := c.tracer.Start(ctx, "goportal.login")
	defer span.End()

	var resolved *Session
	result := c.flow.Login(ctx, identifier, password, func(ctx context.Context) error {
		sess, err := c.fetchSession(ctx, expect)
		if err != nil {
			return err
		}
		resolved = sess
		return nil
	})

	if result.Failure != flows.LoginFailureNone {
		err := loginError(result)
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")

		if result.Failure == flows.LoginFailureIdentity || result.Failure == flows.LoginFailureRoleMismatch {
			c.forget()
		}
		if result.Failure == flows.LoginFailureRoleMismatch {
			c.metricInc(MetricLoginRoleMismatch)
			c.emitAudit(ctx, AuditLoginRoleMismatch, false, nil, err, func() map[string]string {
				return map[string]string{"expected_kind": string(expect.kind)}
			})
		} else {
			c.metricInc(MetricLoginFailure)
			c.emitAudit(ctx, AuditLoginFailure, false, nil, err, nil)
		}
		c.logger.Info("login failed", "error", err)
		return nil, err
	}

	c.setSession(resolved)
	c.metricInc(MetricLoginSuccess)
	c.emitAudit(ctx, AuditLoginSuccess, true, &resolved.Identity, nil, nil)
	span.SetAttributes(attribute.Int64("goportal.user_id", resolved.Identity.ID))
	c.logger.Info("login succeeded", "user_id", resolved.Identity.ID, "route", resolved.Route)

	return resolved.clone(), nil
}

func loginError(result flows.LoginResult) error {
	switch result.Failure {
	case flows.LoginFailureIncompletePair:
		return fmt.Errorf("%w: login returned an incomplete credential pair", ErrMalformedResponse)
	case flows.LoginFailurePersist:
		return fmt.Errorf("goportal: storing credentials: %w", result.Err)
	default:
		return result.Err
	}
}

func (c *Client) exchangeLogin(ctx context.Context, identifier, password string) (credential.Pair, error) {
	resp, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Target: c.config.Backend.LoginPath,
		Body:   JSONBody(loginRequest{Username: identifier, Password: password}),
		Public: true,
	})
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && (reqErr.Status == http.StatusBadRequest || reqErr.Status == http.StatusUnauthorized) {
			return credential.Pair{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return credential.Pair{}, err
	}

	var out loginResponse
	if err := resp.Decode(&out); err != nil {
		return credential.Pair{}, err
	}
	return credential.Pair{Access: out.Access, Refresh: out.Refresh}, nil
}

/*
====================================
RESUME / LOGOUT
====================================
*/

// Resume rebuilds the session of a stored credential pair. It never returns
// an error: every failure reports no session. A definitive rejection clears
// the store; an unreachable backend keeps the pair for a later attempt.
func (c *Client) Resume(ctx context.Context) (*Session, bool) {
	if !c.ready() {
		return nil, false
	}

	ctx, _ = ensureRequestID(ctx)
	ctx, span := c.tracer.Start(ctx, "goportal.resume")
	defer span.End()

	expect := c.defaultExpectation()
	var resolved *Session
	result := c.flow.Resume(ctx, func(ctx context.Context) error {
		sess, err := c.fetchSession(ctx, expect)
		if err != nil {
			return err
		}
		resolved = sess
		return nil
	})
	span.SetAttributes(attribute.String("goportal.resume_outcome", result.Outcome.String()))

	switch result.Outcome {
	case flows.ResumeResolved:
		c.setSession(resolved)
		c.metricInc(MetricResumeSuccess)
		c.emitAudit(ctx, AuditResumeSuccess, true, &resolved.Identity, nil, nil)
		return resolved.clone(), true
	case flows.ResumeRejected:
		c.forget()
		c.metricInc(MetricResumeRejected)
		c.emitAudit(ctx, AuditResumeRejected, false, nil, result.Err, nil)
		c.logger.Info("stored session rejected", "error", result.Err)
	case flows.ResumeUnreachable:
		c.metricInc(MetricResumeUnreachable)
		c.logger.Warn("backend unreachable, stored session kept", "error", result.Err)
	default:
		c.metricInc(MetricResumeNoSession)
	}
	return nil, false
}

// Logout clears the store and the in-memory session. It makes no network
// call and cannot fail; a store error is logged.
func (c *Client) Logout(ctx context.Context) {
	if !c.ready() {
		return
	}
	ident := c.identity()
	c.flow.Logout(ctx)
	c.metricInc(MetricLogout)
	c.emitAudit(ctx, AuditLogout, true, ident, nil, nil)
}

/*
====================================
SESSION STATE
====================================
*/

// Session returns a snapshot of the current session, or [ErrNoSession].
func (c *Client) Session() (*Session, error) {
	if !c.ready() {
		return nil, ErrClientNotReady
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, ErrNoSession
	}
	return c.session.clone(), nil
}

// HasPermission reports whether the current session grants token. Without
// a session it is always false.
func (c *Client) HasPermission(token string) bool {
	if !c.ready() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.HasPermission(token)
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	c.session = s.clone()
	c.mu.Unlock()
}

func (c *Client) forget() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

func (c *Client) identity() *Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	ident := c.session.Identity
	return &ident
}

// touchSession records the expiry of a renewed access credential.
func (c *Client) touchSession(access string) {
	c.mu.Lock()
	if c.session != nil {
		c.session.AccessExpiresAt = accessExpiry(access)
	}
	c.mu.Unlock()
}

// fetchSession resolves the identity of the stored pair and checks it
// against expect.
func (c *Client) fetchSession(ctx context.Context, expect expectation) (*Session, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Target: c.config.Backend.MePath})
	if err != nil {
		return nil, err
	}
	if resp.Empty() {
		return nil, fmt.Errorf("%w: empty identity", ErrMalformedResponse)
	}

	var ident Identity
	if err := resp.Decode(&ident); err != nil {
		return nil, err
	}

	if ident.Role != nil && ident.Role.Slug == "" {
		if catalog, err := c.Roles(ctx); err == nil {
			if role, ok := catalog.ByID(ident.Role.ID); ok {
				ident.Role = &role
			}
		} else {
			c.logger.Debug("role catalog unavailable, routing by id only", "error", err)
		}
	}

	if err := expect.check(ident); err != nil {
		return nil, err
	}

	decision := c.resolver.Resolve(ident.Role)
	ident.Role = decision.Role

	sess := &Session{
		Identity:    ident,
		Role:        decision.Role,
		Permissions: decision.Permissions,
		Route:       decision.Route,
	}
	if pair, ok := c.store.Read(ctx); ok {
		sess.AccessExpiresAt = accessExpiry(pair.Access)
	}
	return sess, nil
}

/*
====================================
ROLES
====================================
*/

// Roles returns the role catalog. It is fetched once per client and kept
// after the first success; a failed fetch is retried on the next call.
func (c *Client) Roles(ctx context.Context) (*rbac.Catalog, error) {
	if !c.ready() {
		return nil, ErrClientNotReady
	}

	c.rolesMu.Lock()
	defer c.rolesMu.Unlock()
	if c.roles != nil {
		return c.roles, nil
	}

	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Target: c.config.Backend.RolesPath, Public: true})
	if err != nil {
		return nil, err
	}

	roles, err := decodeRoles(resp.Body)
	if err != nil {
		return nil, err
	}
	catalog, err := rbac.NewCatalog(roles)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	c.roles = catalog
	c.metricInc(MetricRolesFetched)
	return catalog, nil
}

// decodeRoles accepts a bare array or a paginated {"results": [...]} page.
func decodeRoles(body []byte) ([]rbac.Role, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var roles []rbac.Role
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &roles); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return roles, nil
	}

	var page struct {
		Results []rbac.Role `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return page.Results, nil
}
