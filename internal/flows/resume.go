package flows

import (
	"context"

	"github.com/MrEthical07/goPortal/credential"
)

// ResumeOutcome classifies a resume attempt.
type ResumeOutcome int

const (
	// ResumeNoPair means the store held nothing to resume.
	ResumeNoPair ResumeOutcome = iota
	// ResumeResolved means the identity was fetched and accepted.
	ResumeResolved
	// ResumeRejected means the backend definitively refused the pair; the
	// store is cleared.
	ResumeRejected
	// ResumeUnreachable means no response was received; the pair is kept.
	ResumeUnreachable
)

func (o ResumeOutcome) String() string {
	switch o {
	case ResumeResolved:
		return "resolved"
	case ResumeRejected:
		return "rejected"
	case ResumeUnreachable:
		return "unreachable"
	default:
		return "no_pair"
	}
}

// ResumeResult carries the resume outcome.
type ResumeResult struct {
	Outcome ResumeOutcome
	Err     error
}

// ResumeDeps captures resume flow dependencies.
type ResumeDeps struct {
	Store       credential.Store
	Resolve     func(ctx context.Context) error
	IsTransport func(error) bool
	Warn        func(string, ...any)
}

// RunResume resolves the identity of the stored pair, if any.
func RunResume(ctx context.Context, deps ResumeDeps) ResumeResult {
	if _, ok := deps.Store.Read(ctx); !ok {
		return ResumeResult{Outcome: ResumeNoPair}
	}

	err := deps.Resolve(ctx)
	if err == nil {
		return ResumeResult{Outcome: ResumeResolved}
	}

	if deps.IsTransport != nil && deps.IsTransport(err) {
		return ResumeResult{Outcome: ResumeUnreachable, Err: err}
	}

	if clearErr := deps.Store.Clear(ctx); clearErr != nil && deps.Warn != nil {
		deps.Warn("goportal: credential clear after rejected resume failed", "error", clearErr)
	}
	return ResumeResult{Outcome: ResumeRejected, Err: err}
}
