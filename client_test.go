package goPortal

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goPortal/credential"
	"github.com/MrEthical07/goPortal/portaltest"
)

type echo struct {
	Method      string `json:"method"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
	UserID      int64  `json:"user_id"`
	RequestID   string `json:"request_id"`
	UserAgent   string `json:"user_agent"`
}

func TestDoAttachesBearerAndDecodes(t *testing.T) {
	env := newTestEnv(t, portaltest.Options{})
	env.login(t, "clerk", "clerk1234")
	pair, _ := env.pair(t)

	resp, err := env.client.Do(context.Background(), Request{Method: http.MethodGet, Target: "/api/echo/"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	var out echo
	if err := resp.Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.UserID != 3 || out.Method != http.MethodGet {
		t.Fatalf("unexpected echo: %+v", out)
	}
	if got := env.rt.Auth("/api/echo/"); got != "Bearer "+pair.Access {
		t.Fatalf("expected bearer of stored access, got %q", got)
	}
	if !strings.HasPrefix(out.UserAgent, "goportal/") {
		t.Fatalf("expected default user agent, got %q", out.UserAgent)
	}
	if out.RequestID == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestDoPublicOmitsBearer(t *testing.T) {
	env := newTestEnv(t, portaltest.Options{})
	env.login(t, "clerk", "clerk1234")

	if _, err := env.client.Do(context.Background(), Request{Target: "/auth/roles/", Public: true}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if got := env.rt.Auth("/auth/roles/"); got != "" {
		t.Fatalf("public call carried Authorization %q", got)
	}
}

func TestDoRequestIDFromContext(t *testing.T) {
	env := newTestEnv(t, portaltest.Options{})
	env.login(t, "clerk", "clerk1234")

	ctx := WithRequestID(context.Background(), "req-42")
	resp, err := env.client.Do(ctx, Request{Target: "/api/echo/"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	var out echo
	_ = resp.Decode(&out)
	if out.RequestID != "req-42" {
		t.Fatalf("expected req-42, got %q", out.RequestID)
	}
}

func TestDoEmptySuccess(t *testing.T) {
	env := newTestEnv(t, portaltest.Options{})
	env.login(t, "clerk", "clerk1234")

	resp, err := env.client.Do(context.Background(), Request{Target: "/api/empty/"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.Status != http.StatusNoContent || !resp.Empty() || resp.Body != nil {
		t.Fatalf("expected empty 204, got %d %q", resp.Status, resp.Body)
	}
	var v map[string]any
	if err := resp.Decode(&v); err != nil || v != nil {
		t.Fatalf("decode of empty payload should be a no-op: %v %v", v, err)
	}
}

func TestDoBodyFraming(t *testing.T) {
	env := newTestEnv(t, portaltest.Options{})
	env.login(t, "resident", "resident1234")
	ctx := context.Background()

	resp, err := env.client.Do(ctx, Request{
		Method: http.MethodPost,
		Target: "/api/echo/",
		Body:   JSONBody(map[string]string{"zone": "north"}),
	})
	if err != nil {
		t.Fatalf("json body: %v", err)
	}
	var out echo
	_ = resp.Decode(&out)
	if out.ContentType != "application/json" || out.Body != `{"zone":"north"}` {
		t.Fatalf("unexpected json framing: %+v", out)
	}

	resp, err = env.client.Do(ctx, Request{
		Method: http.MethodPut,
		Target: "/api/echo/",
		Body:   RawBody([]byte("raw-bytes"), ""),
	})
	if err != nil {
		t.Fatalf("raw body: %v", err)
	}
	out = echo{}
	_ = resp.Decode(&out)
	if out.ContentType != "" || out.Body != "raw-bytes" {
		t.Fatalf("raw body must not get a content type override: %+v", out)
	}

	resp, err = env.client.Do(ctx, Request{
		Method: http.MethodPost,
		Target: "/api/upload/",
		Body: MultipartBody(func(w *multipart.Writer) error {
			if err := w.WriteField("note", "overflowing bin"); err != nil {
				return err
			}
			fw, err := w.CreateFormFile("photo", "bin.jpg")
			if err != nil {
				return err
			}
			_, err = fw.Write([]byte{0xff, 0xd8, 0xff})
			return err
		}),
	})
	if err != nil {
		t.Fatalf("multipart body: %v", err)
	}
	var up struct {
		Files       int    `json:"files"`
		Fields      int    `json:"fields"`
		ContentType string `json:"content_type"`
	}
	_ = resp.Decode(&up)
	if up.Files != 1 || up.Fields != 1 || !strings.HasPrefix(up.ContentType, "multipart/form-data; boundary=") {
		t.Fatalf("unexpected upload result: %+v", up)
	}
}

func TestDoRenewsAndReplaysOnce(t *testing.T) {
	env := newTestEnv(t, portaltest.Options{})
	env.login(t, "hauler", "hauler1234")
	before, _ := env.pair(t)

	env.srv.ExpireAccess()
	resp, err := env.client.Do(context.Background(), Request{Target: "/api/echo/"})
	if err != nil {
		t.Fatalf("expected transparent renewal, got %v", err)
	}
	var out echo
	_ = resp.Decode(&out)
	if out.UserID != 2 {
		t.Fatalf("unexpected replay payload: %+v", out)
	}

	after, ok := env.pair(t)
	if !ok {
		t.Fatalf("store emptied by successful renewal")
	}
	if after.Access == before.Access {
		t.Fatalf("access credential not rewritten")
	}
	if after.Refresh != before.Refresh {
		t.Fatalf("refresh credential changed: %q -> %q", before.Refresh, after.Refresh)
	}
	if env.srv.RefreshCount() != 1 {
		t.Fatalf("expected one renewal, got %d", env.srv.RefreshCount())
	}
	if env.rt.Hits("/api/echo/") != 2 {
		t.Fatalf("expected original + replay, got %d", env.rt.Hits("/api/echo/"))
	}
	if got := env.rt.Auth("/api/echo/"); got != "Bearer "+after.Access {
		t.Fatalf("replay did not carry the renewed access")
	}

	snap := env.client.MetricsSnapshot()
	if snap.Counters[MetricRenewalSuccess] != 1 || snap.Counters[MetricRenewalAttempt] != 1 {
		t.Fatalf("unexpected renewal counters: %+v", snap.Counters)
	}
}

func TestDoReplayRejectedIsHardFailure(t *testing.T) {
	env := newTestEnv(t, portaltest.Options{})
	env.login(t, "hauler", "hauler1234")

	env.srv.RejectAllAccess(true)
	_, err := env.client.Do(context.Background(), Request{Target: "/api/echo/"})
	reqErr := requireRequestError(t, err)
	if reqErr.Kind != FailureHard || reqErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected hard 401, got %v (%s)", reqErr, reqErr.Kind)
	}
	if !errors.Is(err, ErrUnauthorized) || !errors.Is(err, ErrSessionExpired) || !reqErr.SessionLost() {
		t.Fatalf("replay rejection must match unauthorized and session expired: %v", err)
	}
	if env.rt.Hits("/api/echo/") != 2 {
		t.Fatalf("expected exactly two attempts, got %d", env.rt.Hits("/api/echo/"))
	}
	if env.srv.RefreshCount() != 1 {
		t.Fatalf("expected one renewal, got %d", env.srv.RefreshCount())
	}
	if _, ok := env.pair(t); ok {
		t.Fatalf("store must be cleared after replay rejection")
	}
	if _, err := env.client.Session(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("session must be dropped, got %v", err)
	}
	if env.client.MetricsSnapshot().Counters[MetricReplayRejected] != 1 {
		t.Fatalf("replay rejection not counted")
	}
}

func TestDoUnauthorizedWithoutRefresh(t *testing.T) {
	env := newTestEnv(t, portaltest.Options{})

	_, err := env.client.Do(context.Background(), Request{Target: "/api/echo/"})
	reqErr := requireRequestError(t, err)
	if reqErr.Kind != FailureHard || !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected hard unauthorized failure, got %v", err)
	}
	if env.srv.RefreshCount() != 0 {
		t.Fatalf("renewal attempted without a refresh credential")
	}
	if env.rt.Hits("/api/echo/") != 1 {
		t.Fatalf("expected a single attempt, got %d", env.rt.Hits("/api/echo/"))
	}
	if reqErr.Message != "Authentication credentials were not provided." {
		t.Fatalf("unexpected message %q", reqErr.Message)
	}
}

func TestDoRenewalFailureExpiresSession(t *testing.T) {
	sink := NewChannelSink(16)
	env := newTestEnv(t, portaltest.Options{}, func(b *Builder) { b.WithAuditSink(sink) })
	env.login(t, "hauler", "hauler1234")

	env.srv.ExpireAccess()
	env.srv.RejectRefresh(true)
	_, err := env.client.Do(context.Background(), Request{Target: "/api/echo/"})
	reqErr := requireRequestError(t, err)
	if reqErr.Kind != FailureSessionExpired || !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
	if _, ok := env.pair(t); ok {
		t.Fatalf("store must be cleared when renewal fails")
	}
	if env.rt.Hits("/api/echo/") != 1 {
		t.Fatalf("failed renewal must not replay, got %d attempts", env.rt.Hits("/api/echo/"))
	}
	if _, err := env.client.Session(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("session must be dropped, got %v", err)
	}

	_ = env.client.Close()
	seen := map[string]bool{}
	for len(sink.Events()) > 0 {
		ev := <-sink.Events()
		seen[ev.EventType] = true
	}
	for _, want := range []string{AuditLoginSuccess, AuditRenewalFailure, AuditSessionExpired} {
		if !seen[want] {
			t.Fatalf("missing audit event %q in %v", want, seen)
		}
	}
}

func TestDoHardFailureMessage(t *testing.T) {
	env := newTestEnv(t, portaltest.Options{})
	env.login(t, "clerk", "clerk1234")
	ctx := context.Background()

	_, err := env.client.Do(ctx, Request{Target: "/api/status/422/?field=error&msg=zone+is+closed"})
	reqErr := requireRequestError(t, err)
	if reqErr.Status != 422 || reqErr.Message != "zone is closed" {
		t.Fatalf("unexpected failure %+v", reqErr)
	}

	_, err = env.client.Do(ctx, Request{Target: "/api/status/503/?field=reason&msg=x"})
	reqErr = requireRequestError(t, err)
	if reqErr.Message != "Service Unavailable" {
		t.Fatalf("expected status text fallback, got %q", reqErr.Message)
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrSessionExpired) {
		t.Fatalf("503 must not match auth sentinels")
	}
	if _, ok := env.pair(t); !ok {
		t.Fatalf("hard failure must not touch the store")
	}
}

func TestDoTransportFailure(t *testing.T) {
	env := newTestEnv(t, portaltest.Options{}, func(b *Builder) {
		b.WithTrustedOrigins("http://127.0.0.1:1")
	})
	env.login(t, "clerk", "clerk1234")

	_, err := env.client.Do(context.Background(), Request{Target: "http://127.0.0.1:1/unreachable"})
	reqErr := requireRequestError(t, err)
	if reqErr.Kind != FailureTransport || !errors.Is(err, ErrTransport) || reqErr.Message == "" {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if _, ok := env.pair(t); !ok {
		t.Fatalf("transport failure must not touch the store")
	}
}

func TestDoInvalidRequest(t *testing.T) {
	env := newTestEnv(t, portaltest.Options{})

	if _, err := env.client.Do(context.Background(), Request{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if _, err := env.client.Do(context.Background(), Request{Target: "ftp://example.com/x"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for ftp, got %v", err)
	}
	_, err := env.client.Do(context.Background(), Request{Target: "/api/echo/", Body: JSONBody(make(chan int))})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for unencodable body, got %v", err)
	}
}

func TestNilClientNotReady(t *testing.T) {
	var c *Client
	if _, err := c.Do(context.Background(), Request{Target: "/x"}); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
	if _, ok := c.Resume(context.Background()); ok {
		t.Fatalf("nil client resumed a session")
	}
	c.Logout(context.Background())
	if c.HasPermission("view_logs") {
		t.Fatalf("nil client granted a permission")
	}
}

func TestSingleFlightSharesRenewal(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	var fallback Renewer

	env := newTestEnv(t, portaltest.Options{}, func(b *Builder) {
		b.WithSingleFlight(true)
		b.WithRenewer(RenewerFunc(func(ctx context.Context, refresh string) (string, error) {
			calls.Add(1)
			<-release
			return fallback.Renew(ctx, refresh)
		}))
	})
	fallback = &httpRenewer{client: env.client}
	env.login(t, "hauler", "hauler1234")
	env.srv.ExpireAccess()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	call := func() {
		defer wg.Done()
		_, err := env.client.Do(context.Background(), Request{Target: "/api/echo/"})
		errs <- err
	}

	wg.Add(1)
	go call()
	waitFor(t, func() bool { return calls.Load() == 1 })
	wg.Add(1)
	go call()
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent call failed: %v", err)
		}
	}
	if calls.Load() != 1 || env.srv.RefreshCount() != 1 {
		t.Fatalf("expected one shared exchange, renewer=%d backend=%d", calls.Load(), env.srv.RefreshCount())
	}
	if env.client.MetricsSnapshot().Counters[MetricRenewalShared] == 0 {
		t.Fatalf("shared renewal not counted")
	}
}

func TestRenewalSkipsWriteAfterLogout(t *testing.T) {
	var env *testEnv
	env = newTestEnv(t, portaltest.Options{}, func(b *Builder) {
		b.WithRenewer(RenewerFunc(func(ctx context.Context, refresh string) (string, error) {
			env.client.Logout(ctx)
			access, _ := env.srv.IssuePair(2)
			return access, nil
		}))
	})
	env.login(t, "hauler", "hauler1234")
	env.srv.ExpireAccess()

	_, err := env.client.Do(context.Background(), Request{Target: "/api/echo/"})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected session expired after logout mid-renewal, got %v", err)
	}
	if hits := env.rt.Hits("/api/echo/"); hits != 1 {
		t.Fatalf("renewed access must not be replayed after logout, got %d sends", hits)
	}
	if pair, ok := env.pair(t); ok {
		t.Fatalf("renewal resurrected a logged out session: %+v", pair)
	}
}

func TestRenewExplicit(t *testing.T) {
	env := newTestEnv(t, portaltest.Options{})
	env.login(t, "admin", "admin1234")
	before, _ := env.pair(t)

	if err := env.client.Renew(context.Background()); err != nil {
		t.Fatalf("renew: %v", err)
	}
	after, _ := env.pair(t)
	if after.Access == before.Access || after.Refresh != before.Refresh {
		t.Fatalf("unexpected pair after renew: %+v", after)
	}
	sess, _ := env.client.Session()
	if sess.AccessExpiresAt.IsZero() {
		t.Fatalf("expected access expiry from jwt claims")
	}

	env.client.Logout(context.Background())
	if err := env.client.Renew(context.Background()); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("renew without refresh must expire the session, got %v", err)
	}
}

func TestExtractMessageOrder(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"detail wins", `{"message":"m","error":"e","detail":"d"}`, 400, "d"},
		{"error before message", `{"message":"m","error":"e"}`, 400, "e"},
		{"message", `{"message":"m"}`, 400, "m"},
		{"blank detail skipped", `{"detail":"  ","message":"m"}`, 400, "m"},
		{"non string detail", `{"detail":["a","b"]}`, 400, `["a","b"]`},
		{"status text", `{"other":"x"}`, 404, "Not Found"},
		{"not json", `<html>oops</html>`, 502, "Bad Gateway"},
		{"empty", ``, 500, "Internal Server Error"},
		{"unknown status", ``, 599, "HTTP 599"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractMessage([]byte(tc.body), tc.status); got != tc.want {
				t.Fatalf("extractMessage() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRequestErrorString(t *testing.T) {
	err := &RequestError{Kind: FailureHard, Status: 404, Message: "Not Found"}
	if err.Error() != "goportal: 404: Not Found" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
	cause := errors.New("dial tcp: refused")
	terr := &RequestError{Kind: FailureTransport, Message: cause.Error(), Cause: cause}
	if !errors.Is(terr, cause) || terr.Error() != "goportal: dial tcp: refused" {
		t.Fatalf("unexpected transport error %q", terr.Error())
	}
	if FailureSessionExpired.String() != "session_expired" {
		t.Fatalf("unexpected kind string %q", FailureSessionExpired.String())
	}
}

func TestDoWithholdsBearerFromUntrustedOrigins(t *testing.T) {
	var foreignAuth atomic.Value
	var foreignHits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignHits.Add(1)
		foreignAuth.Store(r.Header.Get("Authorization"))
		if r.URL.Path == "/deny" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(foreign.Close)

	env := newTestEnv(t, portaltest.Options{})
	env.login(t, "clerk", "clerk1234")
	ctx := context.Background()

	_, err := env.client.Do(ctx, Request{Target: foreign.URL + "/steal"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for an untrusted origin, got %v", err)
	}
	if foreignHits.Load() != 0 {
		t.Fatalf("untrusted origin was contacted %d times", foreignHits.Load())
	}

	if _, err := env.client.Do(ctx, Request{Target: foreign.URL + "/open", Public: true}); err != nil {
		t.Fatalf("public call to another origin: %v", err)
	}
	if got, _ := foreignAuth.Load().(string); got != "" {
		t.Fatalf("public call leaked Authorization=%q", got)
	}

	_, err = env.client.Do(ctx, Request{Target: foreign.URL + "/deny", Public: true})
	if reqErr := requireRequestError(t, err); reqErr.Status != http.StatusUnauthorized || reqErr.SessionLost() {
		t.Fatalf("foreign 401 must be a plain hard failure, got %v", err)
	}
	if env.srv.RefreshCount() != 0 {
		t.Fatalf("foreign 401 started a renewal")
	}
	if _, ok := env.pair(t); !ok {
		t.Fatalf("foreign 401 cleared the stored pair")
	}
}

func TestDoAttachesBearerToConfiguredOrigin(t *testing.T) {
	var foreignAuth atomic.Value
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(foreign.Close)

	env := newTestEnv(t, portaltest.Options{}, func(b *Builder) {
		b.WithTrustedOrigins(foreign.URL)
	})
	env.login(t, "clerk", "clerk1234")
	pair, _ := env.pair(t)

	if _, err := env.client.Do(context.Background(), Request{Target: foreign.URL + "/reports"}); err != nil {
		t.Fatalf("call to trusted origin: %v", err)
	}
	if got, _ := foreignAuth.Load().(string); got != "Bearer "+pair.Access {
		t.Fatalf("trusted origin got Authorization=%q", got)
	}
}

func TestSingleFlightLeaderCancelKeepsSession(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	var fallback Renewer

	env := newTestEnv(t, portaltest.Options{}, func(b *Builder) {
		b.WithSingleFlight(true)
		b.WithRenewer(RenewerFunc(func(ctx context.Context, refresh string) (string, error) {
			calls.Add(1)
			select {
			case <-release:
			case <-ctx.Done():
				return "", ctx.Err()
			}
			return fallback.Renew(ctx, refresh)
		}))
	})
	fallback = &httpRenewer{client: env.client}
	env.login(t, "hauler", "hauler1234")
	env.srv.ExpireAccess()

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := env.client.Do(leaderCtx, Request{Target: "/api/echo/"})
		leaderErr <- err
	}()
	waitFor(t, func() bool { return calls.Load() == 1 })

	followerErr := make(chan error, 1)
	go func() {
		_, err := env.client.Do(context.Background(), Request{Target: "/api/echo/"})
		followerErr <- err
	}()
	waitFor(t, func() bool { return env.rt.Hits("/api/echo/") == 2 })
	time.Sleep(100 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) || !errors.Is(err, ErrTransport) {
		t.Fatalf("leader should see its own cancellation, got %v", err)
	}
	if _, ok := env.pair(t); !ok {
		t.Fatalf("leader cancellation cleared the stored pair")
	}

	close(release)
	if err := <-followerErr; err != nil {
		t.Fatalf("follower failed after leader cancellation: %v", err)
	}
	if _, ok := env.pair(t); !ok {
		t.Fatalf("stored pair lost")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one shared exchange, got %d", calls.Load())
	}
	if _, err := env.client.Session(); err != nil {
		t.Fatalf("in-memory session dropped: %v", err)
	}
}

func TestRenewCanceledKeepsPair(t *testing.T) {
	env := newTestEnv(t, portaltest.Options{}, func(b *Builder) {
		b.WithRenewer(RenewerFunc(func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}))
	})
	env.login(t, "hauler", "hauler1234")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := env.client.Renew(ctx)
	if !errors.Is(err, ErrTransport) || errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected transport-class cancellation, got %v", err)
	}
	if _, ok := env.pair(t); !ok {
		t.Fatalf("canceled renewal cleared the stored pair")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

var _ credential.Store = (*failingStore)(nil)
