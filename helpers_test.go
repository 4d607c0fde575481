package goPortal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/MrEthical07/goPortal/credential"
	"github.com/MrEthical07/goPortal/portaltest"
)

// recordingTransport counts requests per path and keeps the last
// Authorization header seen for each.
type recordingTransport struct {
	base http.RoundTripper

	mu   sync.Mutex
	hits map[string]int
	auth map[string]string
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{
		base: http.DefaultTransport,
		hits: make(map[string]int),
		auth: make(map[string]string),
	}
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	rt.hits[req.URL.Path]++
	rt.auth[req.URL.Path] = req.Header.Get("Authorization")
	rt.mu.Unlock()
	return rt.base.RoundTrip(req)
}

func (rt *recordingTransport) Hits(path string) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.hits[path]
}

func (rt *recordingTransport) Auth(path string) string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.auth[path]
}

type testEnv struct {
	srv    *portaltest.Server
	client *Client
	store  *credential.MemoryStore
	rt     *recordingTransport
}

func newTestEnv(t *testing.T, opts portaltest.Options, configure ...func(*Builder)) *testEnv {
	t.Helper()

	srv := portaltest.New(opts)
	t.Cleanup(srv.Close)

	env := &testEnv{
		srv:   srv,
		store: credential.NewMemoryStore(),
		rt:    newRecordingTransport(),
	}

	b := New().
		WithBaseURL(srv.URL).
		WithStore(env.store).
		WithHTTPClient(&http.Client{Transport: env.rt}).
		WithMetricsEnabled(true)
	for _, fn := range configure {
		fn(b)
	}

	c, err := b.Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	env.client = c
	return env
}

func (e *testEnv) login(t *testing.T, user, password string) *Session {
	t.Helper()
	sess, err := e.client.Login(context.Background(), user, password)
	if err != nil {
		t.Fatalf("login %s: %v", user, err)
	}
	return sess
}

func (e *testEnv) pair(t *testing.T) (credential.Pair, bool) {
	t.Helper()
	return e.store.Read(context.Background())
}

func requireRequestError(t *testing.T, err error) *RequestError {
	t.Helper()
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T: %v", err, err)
	}
	return reqErr
}

// failingStore is a store whose Clear always fails.
type failingStore struct {
	*credential.MemoryStore
	clears int
}

func (s *failingStore) Clear(ctx context.Context) error {
	s.clears++
	_ = s.MemoryStore.Clear(ctx)
	return errors.New("disk on fire")
}
