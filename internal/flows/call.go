package flows

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goPortal/credential"
)

// MaxRenewals is the retry budget of one originating call: one renewal
// followed by one replay.
const MaxRenewals = 1

// CallState is a node of the per-call state machine.
type CallState int

const (
	StateIssued CallState = iota
	StateRenewing
	StateReissued
	StateDone
	StateHardFailure
	StateSessionExpired
)

func (s CallState) String() string {
	switch s {
	case StateIssued:
		return "issued"
	case StateRenewing:
		return "renewing"
	case StateReissued:
		return "reissued"
	case StateDone:
		return "done"
	case StateHardFailure:
		return "hard_failure"
	case StateSessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s CallState) Terminal() bool {
	return s == StateDone || s == StateHardFailure || s == StateSessionExpired
}

// CallFailureKind classifies call flow failures for root-level mapping.
type CallFailureKind int

const (
	CallFailureNone CallFailureKind = iota
	// CallFailureStatus is a non-2xx answer that is not renewable.
	CallFailureStatus
	// CallFailureTransport means no response was received.
	CallFailureTransport
	// CallFailureUnauthorized is a 401 with no refresh credential to renew with.
	CallFailureUnauthorized
	// CallFailureRenewal means the renewal exchange failed; the store is cleared.
	CallFailureRenewal
	// CallFailureReplayRejected is a 401 on the replay; the store is cleared.
	CallFailureReplayRejected
	// CallFailureCanceled means the caller's context ended during renewal;
	// the store is untouched.
	CallFailureCanceled
)

// Attempt is the outcome of sending a request once.
type Attempt struct {
	Status int
	Header http.Header
	Body   []byte
	// Err is set when no response was received.
	Err error
}

// OK reports a 2xx answer.
func (a Attempt) OK() bool {
	return a.Err == nil && a.Status >= 200 && a.Status < 300
}

// CallInput describes one originating call.
type CallInput struct {
	AuthRequired bool
}

// CallResult carries the final attempt or failure metadata.
type CallResult struct {
	Failure  CallFailureKind
	State    CallState
	Attempt  Attempt
	Attempts int
	Renewed  bool
	Renewal  RenewalResult
	Err      error
}

// CallDeps captures call flow dependencies.
type CallDeps struct {
	// Send performs one request; access is empty when no bearer header must be
	// attached.
	Send         func(ctx context.Context, access string) Attempt
	Store        credential.Store
	Renew        func(ctx context.Context, refresh string) RenewalResult
	OnTransition func(from, to CallState)
	Warn         func(string, ...any)
}

// RunCall drives one originating call through the state machine
// ISSUED -> DONE | RENEWING | HARD_FAILURE, RENEWING -> REISSUED |
// SESSION_EXPIRED, REISSUED -> DONE | HARD_FAILURE. A caller that gives up
// while RENEWING ends in HARD_FAILURE with the store untouched.
func RunCall(ctx context.Context, in CallInput, deps CallDeps) CallResult {
	var access string
	var pair credential.Pair
	var stored bool
	if in.AuthRequired {
		pair, stored = deps.Store.Read(ctx)
		if stored {
			access = pair.Access
		}
	}
	return step(ctx, in, deps, StateIssued, access, pair.Refresh, MaxRenewals, CallResult{})
}

func step(
	ctx context.Context,
	in CallInput,
	deps CallDeps,
	state CallState,
	access string,
	refresh string,
	budget int,
	acc CallResult,
) CallResult {
	attempt := deps.Send(ctx, access)
	acc.Attempts++
	acc.Attempt = attempt

	if attempt.Err != nil {
		return finish(deps, state, StateHardFailure, withFailure(acc, CallFailureTransport, attempt.Err))
	}
	if attempt.OK() {
		return finish(deps, state, StateDone, acc)
	}
	if attempt.Status != http.StatusUnauthorized || !in.AuthRequired {
		return finish(deps, state, StateHardFailure, withFailure(acc, CallFailureStatus, nil))
	}

	if budget <= 0 {
		clearWithWarn(ctx, deps.Store, deps.Warn, "goportal: credential clear after rejected replay failed")
		return finish(deps, state, StateHardFailure, withFailure(acc, CallFailureReplayRejected, nil))
	}
	if refresh == "" || deps.Renew == nil {
		return finish(deps, state, StateHardFailure, withFailure(acc, CallFailureUnauthorized, nil))
	}

	transition(deps, state, StateRenewing)
	renewal := deps.Renew(ctx, refresh)
	acc.Renewal = renewal
	if renewal.Failure == RenewalFailureCanceled {
		return finish(deps, StateRenewing, StateHardFailure, withFailure(acc, CallFailureCanceled, renewal.Err))
	}
	if renewal.Failure != RenewalFailureNone {
		return finish(deps, StateRenewing, StateSessionExpired, withFailure(acc, CallFailureRenewal, renewal.Err))
	}
	acc.Renewed = true

	transition(deps, StateRenewing, StateReissued)
	return step(ctx, in, deps, StateReissued, renewal.Access, refresh, budget-1, acc)
}

func withFailure(acc CallResult, kind CallFailureKind, err error) CallResult {
	acc.Failure = kind
	acc.Err = err
	return acc
}

func finish(deps CallDeps, from, to CallState, acc CallResult) CallResult {
	transition(deps, from, to)
	acc.State = to
	return acc
}

func transition(deps CallDeps, from, to CallState) {
	if deps.OnTransition != nil {
		deps.OnTransition(from, to)
	}
}
