package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goPortal/credential"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureExchange
	LoginFailureIncompletePair
	LoginFailurePersist
	LoginFailureIdentity
	LoginFailureRoleMismatch
)

// LoginResult carries the stored pair or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Pair    credential.Pair
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Exchange func(ctx context.Context, identifier, password string) (credential.Pair, error)
	Store    credential.Store
	// Resolve fetches the identity with the stored pair and checks it against
	// the caller's expectation.
	Resolve      func(ctx context.Context) error
	RoleMismatch error
	Warn         func(string, ...any)
}

// RunLogin exchanges credentials for a pair, stores it, then resolves the
// identity. A failure after the pair was stored leaves the store absent.
func RunLogin(ctx context.Context, identifier, password string, deps LoginDeps) LoginResult {
	pair, err := deps.Exchange(ctx, identifier, password)
	if err != nil {
		return LoginResult{Failure: LoginFailureExchange, Err: err}
	}
	if !pair.Valid() {
		return LoginResult{Failure: LoginFailureIncompletePair, Err: credential.ErrPartialPair}
	}

	if err := deps.Store.Write(ctx, pair); err != nil {
		return LoginResult{Failure: LoginFailurePersist, Err: err}
	}

	if err := deps.Resolve(ctx); err != nil {
		if clearErr := deps.Store.Clear(ctx); clearErr != nil && deps.Warn != nil {
			deps.Warn("goportal: credential clear after failed login failed", "error", clearErr)
		}
		if deps.RoleMismatch != nil && errors.Is(err, deps.RoleMismatch) {
			return LoginResult{Failure: LoginFailureRoleMismatch, Err: err}
		}
		return LoginResult{Failure: LoginFailureIdentity, Err: err}
	}

	return LoginResult{Pair: pair}
}
