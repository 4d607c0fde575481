package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goPortal/credential"
)

var errMismatch = errors.New("role mismatch")

func TestRunLoginStoresPair(t *testing.T) {
	store := credential.NewMemoryStore()
	resolved := false
	res := RunLogin(context.Background(), "admin", "pw", LoginDeps{
		Exchange: func(context.Context, string, string) (credential.Pair, error) {
			return credential.Pair{Access: "a", Refresh: "r"}, nil
		},
		Store: store,
		Resolve: func(ctx context.Context) error {
			if _, ok := store.Read(ctx); !ok {
				t.Fatal("pair must be stored before identity fetch")
			}
			resolved = true
			return nil
		},
		RoleMismatch: errMismatch,
	})
	if res.Failure != LoginFailureNone || !resolved {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, ok := store.Read(context.Background()); !ok {
		t.Fatal("expected stored pair")
	}
}

func TestRunLoginMismatchClearsStore(t *testing.T) {
	store := credential.NewMemoryStore()
	res := RunLogin(context.Background(), "admin", "pw", LoginDeps{
		Exchange: func(context.Context, string, string) (credential.Pair, error) {
			return credential.Pair{Access: "a", Refresh: "r"}, nil
		},
		Store:        store,
		Resolve:      func(context.Context) error { return errMismatch },
		RoleMismatch: errMismatch,
	})
	if res.Failure != LoginFailureRoleMismatch {
		t.Fatalf("expected role mismatch, got %+v", res)
	}
	if _, ok := store.Read(context.Background()); ok {
		t.Fatal("expected store cleared")
	}
}

func TestRunLoginIdentityAndExchangeFailures(t *testing.T) {
	store := credential.NewMemoryStore()
	res := RunLogin(context.Background(), "admin", "pw", LoginDeps{
		Exchange: func(context.Context, string, string) (credential.Pair, error) {
			return credential.Pair{Access: "a", Refresh: "r"}, nil
		},
		Store:   store,
		Resolve: func(context.Context) error { return errors.New("me failed") },
	})
	if res.Failure != LoginFailureIdentity {
		t.Fatalf("expected identity failure, got %+v", res)
	}
	if _, ok := store.Read(context.Background()); ok {
		t.Fatal("expected store cleared")
	}

	res = RunLogin(context.Background(), "admin", "bad", LoginDeps{
		Exchange: func(context.Context, string, string) (credential.Pair, error) {
			return credential.Pair{}, errors.New("bad credentials")
		},
		Store:   store,
		Resolve: func(context.Context) error { t.Fatal("resolve must not run"); return nil },
	})
	if res.Failure != LoginFailureExchange {
		t.Fatalf("expected exchange failure, got %+v", res)
	}

	res = RunLogin(context.Background(), "admin", "pw", LoginDeps{
		Exchange: func(context.Context, string, string) (credential.Pair, error) {
			return credential.Pair{Access: "a"}, nil
		},
		Store:   store,
		Resolve: func(context.Context) error { t.Fatal("resolve must not run"); return nil },
	})
	if res.Failure != LoginFailureIncompletePair {
		t.Fatalf("expected incomplete pair failure, got %+v", res)
	}
}

func TestRunResumeOutcomes(t *testing.T) {
	transportErr := errors.New("dial tcp: refused")
	isTransport := func(err error) bool { return errors.Is(err, transportErr) }

	empty := credential.NewMemoryStore()
	if res := RunResume(context.Background(), ResumeDeps{Store: empty, Resolve: func(context.Context) error {
		t.Fatal("resolve must not run without a pair")
		return nil
	}}); res.Outcome != ResumeNoPair {
		t.Fatalf("expected no pair, got %s", res.Outcome)
	}

	ok := seededStore(t)
	if res := RunResume(context.Background(), ResumeDeps{Store: ok, Resolve: func(context.Context) error { return nil }}); res.Outcome != ResumeResolved {
		t.Fatalf("expected resolved, got %s", res.Outcome)
	}

	rejected := seededStore(t)
	res := RunResume(context.Background(), ResumeDeps{Store: rejected, IsTransport: isTransport,
		Resolve: func(context.Context) error { return errors.New("401") }})
	if res.Outcome != ResumeRejected {
		t.Fatalf("expected rejected, got %s", res.Outcome)
	}
	if _, ok := rejected.Read(context.Background()); ok {
		t.Fatal("rejected resume must clear the store")
	}

	unreachable := seededStore(t)
	res = RunResume(context.Background(), ResumeDeps{Store: unreachable, IsTransport: isTransport,
		Resolve: func(context.Context) error { return transportErr }})
	if res.Outcome != ResumeUnreachable {
		t.Fatalf("expected unreachable, got %s", res.Outcome)
	}
	if _, ok := unreachable.Read(context.Background()); !ok {
		t.Fatal("unreachable resume must keep the pair")
	}
}

func TestRunRenewalSkipsWriteAfterConcurrentLogout(t *testing.T) {
	store := seededStore(t)
	res := RunRenewal(context.Background(), "refresh", RenewalDeps{
		Store: store,
		Exchange: func(ctx context.Context, _ string) (string, error) {
			_ = store.Clear(ctx)
			return "new-access", nil
		},
	})
	if res.Failure != RenewalFailureSlotChanged || !errors.Is(res.Err, ErrSlotChanged) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Access != "" || res.Cleared() {
		t.Fatalf("slot change must discard the access credential: %+v", res)
	}
	if _, ok := store.Read(context.Background()); ok {
		t.Fatal("renewal must not resurrect a cleared slot")
	}
}

func TestRunRenewalSkipsWriteAfterRelogin(t *testing.T) {
	store := seededStore(t)
	next := credential.Pair{Access: "other-access", Refresh: "other-refresh"}
	res := RunRenewal(context.Background(), "refresh", RenewalDeps{
		Store: store,
		Exchange: func(ctx context.Context, _ string) (string, error) {
			_ = store.Write(ctx, next)
			return "new-access", nil
		},
	})
	if res.Failure != RenewalFailureSlotChanged {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got, ok := store.Read(context.Background()); !ok || got != next {
		t.Fatalf("newer pair must survive, got %+v ok=%v", got, ok)
	}
}

func TestRunRenewalCanceledKeepsStore(t *testing.T) {
	store := seededStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	res := RunRenewal(ctx, "refresh", RenewalDeps{
		Store: store,
		Exchange: func(ctx context.Context, _ string) (string, error) {
			cancel()
			return "", ctx.Err()
		},
	})
	if res.Failure != RenewalFailureCanceled || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Cleared() {
		t.Fatal("canceled renewal must not report a cleared store")
	}
	if got, ok := store.Read(context.Background()); !ok || got.Refresh != "refresh" {
		t.Fatalf("canceled renewal must keep the pair, got %+v ok=%v", got, ok)
	}
}

func TestRunRenewalEmptyAccessFails(t *testing.T) {
	store := seededStore(t)
	res := RunRenewal(context.Background(), "refresh", RenewalDeps{
		Store:    store,
		Exchange: func(context.Context, string) (string, error) { return "", nil },
	})
	if res.Failure != RenewalFailureEmptyAccess {
		t.Fatalf("expected empty access failure, got %+v", res)
	}
	if _, ok := store.Read(context.Background()); ok {
		t.Fatal("expected store cleared")
	}
}

func TestRunLogoutAlwaysForgets(t *testing.T) {
	store := seededStore(t)
	forgot := false
	res := RunLogout(context.Background(), LogoutDeps{Store: store, Forget: func() { forgot = true }})
	if res.StoreErr != nil || !forgot {
		t.Fatalf("unexpected logout result: %+v forgot=%v", res, forgot)
	}
	if _, ok := store.Read(context.Background()); ok {
		t.Fatal("expected store cleared")
	}
}
