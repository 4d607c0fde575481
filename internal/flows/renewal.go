package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goPortal/credential"
)

// RenewalFailureKind classifies renewal flow failures for root-level mapping.
type RenewalFailureKind int

const (
	RenewalFailureNone RenewalFailureKind = iota
	RenewalFailureMissingRefresh
	RenewalFailureExchange
	RenewalFailureEmptyAccess
	RenewalFailurePersist
	// RenewalFailureCanceled means the caller's context ended; the store is
	// left as it was.
	RenewalFailureCanceled
	// RenewalFailureSlotChanged means the slot no longer holds the refresh
	// credential that was exchanged, e.g. after a concurrent logout. The
	// renewed access credential is discarded and the store is left as it was.
	RenewalFailureSlotChanged
)

// ErrSlotChanged reports a renewal whose slot was rewritten or cleared while
// the exchange was in flight.
var ErrSlotChanged = errors.New("credential slot changed during renewal")

// RenewalResult carries the new access credential or failure metadata.
type RenewalResult struct {
	Failure RenewalFailureKind
	Err     error
	Access  string
}

// Cleared reports whether the failure destroyed the stored pair.
func (r RenewalResult) Cleared() bool {
	switch r.Failure {
	case RenewalFailureNone, RenewalFailureCanceled, RenewalFailureSlotChanged:
		return false
	default:
		return true
	}
}

// RenewalDeps captures renewal flow dependencies.
type RenewalDeps struct {
	Exchange func(ctx context.Context, refresh string) (string, error)
	Store    credential.Store
	Warn     func(string, ...any)
}

// RunRenewal exchanges refresh for a new access credential and rewrites the
// store as {new access, same refresh}. A failure clears the store unless ctx
// ended first or the slot changed under the exchange.
func RunRenewal(ctx context.Context, refresh string, deps RenewalDeps) RenewalResult {
	if refresh == "" {
		clearStore(ctx, deps)
		return RenewalResult{Failure: RenewalFailureMissingRefresh, Err: errors.New("no refresh credential")}
	}

	access, err := deps.Exchange(ctx, refresh)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RenewalResult{Failure: RenewalFailureCanceled, Err: ctxErr}
		}
		clearStore(ctx, deps)
		return RenewalResult{Failure: RenewalFailureExchange, Err: err}
	}
	if access == "" {
		clearStore(ctx, deps)
		return RenewalResult{Failure: RenewalFailureEmptyAccess, Err: errors.New("renewal returned empty access credential")}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return RenewalResult{Failure: RenewalFailureCanceled, Err: ctxErr}
	}

	current, ok := deps.Store.Read(ctx)
	if !ok || current.Refresh != refresh {
		return RenewalResult{Failure: RenewalFailureSlotChanged, Err: ErrSlotChanged}
	}

	if err := deps.Store.Write(ctx, credential.Pair{Access: access, Refresh: refresh}); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RenewalResult{Failure: RenewalFailureCanceled, Err: ctxErr}
		}
		clearStore(ctx, deps)
		return RenewalResult{Failure: RenewalFailurePersist, Err: err}
	}

	return RenewalResult{Access: access}
}

func clearStore(ctx context.Context, deps RenewalDeps) {
	clearWithWarn(ctx, deps.Store, deps.Warn, "goportal: credential clear after renewal failure failed")
}

func clearWithWarn(ctx context.Context, store credential.Store, warn func(string, ...any), msg string) {
	if err := store.Clear(ctx); err != nil && warn != nil {
		warn(msg, "error", err)
	}
}
