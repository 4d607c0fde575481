package goPortal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	internalaudit "github.com/MrEthical07/goPortal/internal/audit"
	"github.com/MrEthical07/goPortal/internal/flows"
	internalmetrics "github.com/MrEthical07/goPortal/internal/metrics"
	"github.com/MrEthical07/goPortal/credential"
	"github.com/MrEthical07/goPortal/rbac"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Client is the authenticated request client and session facade.
//
// A Client is safe for concurrent use once built.
type Client struct {
	config  Config
	baseURL *url.URL
	origins map[string]struct{}
	http    *http.Client
	logger  *slog.Logger
	tracer  trace.Tracer

	store      credential.Store
	ownedRedis redis.UniversalClient

	renewer Renewer
	group   *singleflight.Group

	resolver *rbac.Resolver
	audit    *internalaudit.Dispatcher
	metrics  *internalmetrics.Metrics
	flow     flows.Service

	mu      sync.RWMutex
	session *Session

	rolesMu sync.Mutex
	roles   *rbac.Catalog

	closeOnce sync.Once
	closeErr  error
}

func (c *Client) ready() bool {
	return c != nil && c.flow.Initialized()
}

// Store returns the credential store the client reads and writes.
func (c *Client) Store() credential.Store {
	if c == nil {
		return nil
	}
	return c.store
}

// Resolver returns the RBAC resolver sessions are built with.
func (c *Client) Resolver() *rbac.Resolver {
	if c == nil {
		return nil
	}
	return c.resolver
}

// Config returns a copy of the configuration the client was built with.
func (c *Client) Config() Config {
	if c == nil {
		return Config{}
	}
	return cloneConfig(c.config)
}

// Close flushes the audit dispatcher and closes the redis client the
// client created itself. Later calls return the first result.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.audit.Close()
		if c.ownedRedis != nil {
			c.closeErr = c.ownedRedis.Close()
		}
	})
	return c.closeErr
}

/*
====================================
DISPATCH
====================================
*/

// Do performs one originating call. A 401 on a call that is not Public is
// answered by at most one renewal followed by one replay.
//
// An absolute Target outside the backend origin and Backend.TrustedOrigins
// is only accepted on Public calls, so the bearer credential never leaves
// the trusted origins.
//
// Every non-2xx outcome is returned as a *[RequestError].
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if !c.ready() {
		return nil, ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	target, err := c.resolveTarget(req.Target)
	if err != nil {
		return nil, err
	}
	if !req.Public && !c.trusted(target) {
		return nil, fmt.Errorf("%w: %s is not a trusted origin for authenticated calls", ErrInvalidRequest, target.Host)
	}

	var data []byte
	var contentType string
	if req.Body != nil {
		data, contentType, err = req.Body.encode()
		if err != nil {
			return nil, err
		}
	}

	ctx, requestID := ensureRequestID(ctx)

	ctx, span := c.tracer.Start(ctx, "goportal.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", target.Path),
			attribute.Bool("goportal.auth_required", !req.Public),
		),
	)
	defer span.End()

	send := func(ctx context.Context, access string) flows.Attempt {
		return c.send(ctx, outgoing{
			method:      method,
			url:         target.String(),
			body:        data,
			contentType: contentType,
			header:      req.Header,
			requestID:   requestID,
			access:      access,
		})
	}

	start := time.Now()
	result := c.flow.Call(ctx, flows.CallInput{AuthRequired: !req.Public}, send)
	c.metricObserve(MetricCallLatency, time.Since(start))

	span.SetAttributes(
		attribute.Int("goportal.attempts", result.Attempts),
		attribute.Bool("goportal.renewed", result.Renewed),
	)
	if result.Attempt.Status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", result.Attempt.Status))
	}

	resp, err := c.classify(ctx, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("call failed",
			"method", method,
			"path", target.Path,
			"request_id", requestID,
			"attempts", result.Attempts,
			"state", result.State.String(),
			"error", err,
		)
		return nil, err
	}

	c.logger.Debug("call done",
		"method", method,
		"path", target.Path,
		"request_id", requestID,
		"status", resp.Status,
		"attempts", result.Attempts,
	)
	return resp, nil
}

func (c *Client) classify(ctx context.Context, result flows.CallResult) (*Response, error) {
	attempt := result.Attempt

	switch result.Failure {
	case flows.CallFailureNone:
		c.metricInc(MetricCallSuccess)
		resp := &Response{Status: attempt.Status, Header: attempt.Header}
		if len(attempt.Body) > 0 {
			resp.Body = attempt.Body
		}
		return resp, nil

	case flows.CallFailureTransport:
		c.metricInc(MetricCallTransportFailure)
		return nil, &RequestError{
			Kind:    FailureTransport,
			Message: result.Err.Error(),
			Cause:   result.Err,
		}

	case flows.CallFailureCanceled:
		c.metricInc(MetricCallTransportFailure)
		return nil, &RequestError{
			Kind:    FailureTransport,
			Message: result.Err.Error(),
			Cause:   result.Err,
		}

	case flows.CallFailureRenewal:
		c.metricInc(MetricSessionExpired)
		c.emitAudit(ctx, AuditSessionExpired, false, nil, result.Err, func() map[string]string {
			return map[string]string{"stage": "renewal"}
		})
		return nil, &RequestError{
			Kind:    FailureSessionExpired,
			Message: "session expired",
			Cause:   result.Err,
		}

	case flows.CallFailureReplayRejected:
		c.metricInc(MetricCallHardFailure)
		c.metricInc(MetricReplayRejected)
		c.metricInc(MetricSessionExpired)
		c.forget()
		c.emitAudit(ctx, AuditSessionExpired, false, nil, ErrUnauthorized, func() map[string]string {
			return map[string]string{"stage": "replay"}
		})
		return nil, &RequestError{
			Kind:        FailureHard,
			Status:      attempt.Status,
			Message:     extractMessage(attempt.Body, attempt.Status),
			sessionLost: true,
		}

	default:
		c.metricInc(MetricCallHardFailure)
		return nil, &RequestError{
			Kind:    FailureHard,
			Status:  attempt.Status,
			Message: extractMessage(attempt.Body, attempt.Status),
		}
	}
}

func (c *Client) trusted(u *url.URL) bool {
	_, ok := c.origins[originKey(u)]
	return ok
}

func (c *Client) resolveTarget(target string) (*url.URL, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("%w: empty target", ErrInvalidRequest)
	}
	ref, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRequest, ref.Scheme)
		}
		return ref, nil
	}

	out := *c.baseURL
	path := ref.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	out.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	out.RawQuery = ref.RawQuery
	return &out, nil
}

/*
====================================
TRANSPORT
====================================
*/

type outgoing struct {
	method      string
	url         string
	body        []byte
	contentType string
	header      http.Header
	requestID   string
	access      string
}

// send performs exactly one HTTP exchange.
func (c *Client) send(ctx context.Context, out outgoing) flows.Attempt {
	var body io.Reader
	if out.body != nil {
		body = bytes.NewReader(out.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, out.method, out.url, body)
	if err != nil {
		return flows.Attempt{Err: err}
	}
	for name, values := range out.header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if out.contentType != "" {
		httpReq.Header.Set("Content-Type", out.contentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if c.config.Backend.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.Backend.UserAgent)
	}
	httpReq.Header.Set("X-Request-ID", out.requestID)
	if out.access != "" {
		httpReq.Header.Set("Authorization", "Bearer "+out.access)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return flows.Attempt{Err: err}
	}
	defer resp.Body.Close()

	limit := c.config.Backend.MaxResponseBytes
	payload, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return flows.Attempt{Err: fmt.Errorf("reading response: %w", err)}
	}
	if int64(len(payload)) > limit {
		return flows.Attempt{Err: fmt.Errorf("response exceeds %d bytes", limit)}
	}

	return flows.Attempt{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   payload,
	}
}

// messageFields are tried in order on a failure payload.
var messageFields = [...]string{"detail", "error", "message"}

// extractMessage returns the human-readable message of a failure payload,
// falling back to the status text.
func extractMessage(body []byte, status int) string {
	var fields map[string]json.RawMessage
	if len(bytes.TrimSpace(body)) > 0 && json.Unmarshal(body, &fields) == nil {
		for _, name := range messageFields {
			raw, ok := fields[name]
			if !ok {
				continue
			}
			if msg := rawMessageText(raw); msg != "" {
				return msg
			}
		}
	}

	if text := http.StatusText(status); text != "" {
		return text
	}
	return "HTTP " + strconv.Itoa(status)
}

func rawMessageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	return string(trimmed)
}

func isTransportFailure(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	return reqErr.Kind == FailureTransport
}
