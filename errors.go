package goPortal

import (
	"errors"
	"net/http"
	"strconv"
)

var (
	// ErrUnauthorized matches every failure answered with HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired means the credential pair could not be renewed and has
	// been discarded; the caller must authenticate again.
	ErrSessionExpired = errors.New("session expired")
	// ErrRoleMismatch is returned when the authenticated identity does not
	// belong to the portal the caller expects.
	ErrRoleMismatch = errors.New("role does not match portal")
	// ErrNoSession is returned by operations that need a resolved session.
	ErrNoSession = errors.New("no session")
	// ErrInvalidCredentials is returned when login is refused by the backend.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrClientNotReady is returned by every method of an unbuilt client.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrInvalidRequest is returned for requests that cannot be sent.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTransport matches failures where no response was received.
	ErrTransport = errors.New("transport failure")
	// ErrMalformedResponse is returned when a 2xx payload cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// FailureKind classifies a [RequestError].
type FailureKind int

const (
	// FailureHard is a non-2xx answer surfaced with its extracted message.
	FailureHard FailureKind = iota + 1
	// FailureTransport means no response was received.
	FailureTransport
	// FailureSessionExpired means renewal failed and the store was cleared.
	FailureSessionExpired
)

func (k FailureKind) String() string {
	switch k {
	case FailureHard:
		return "hard"
	case FailureTransport:
		return "transport"
	case FailureSessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// RequestError is the classified failure of one originating call.
type RequestError struct {
	Kind    FailureKind
	Status  int
	Message string
	Cause   error

	// sessionLost is set when the failure discarded the stored credentials.
	sessionLost bool
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Status != 0 {
		return "goportal: " + strconv.Itoa(e.Status) + ": " + msg
	}
	return "goportal: " + msg
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// Is matches the package sentinels against the classified failure.
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == FailureTransport
	case ErrSessionExpired:
		return e.Kind == FailureSessionExpired || e.sessionLost
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	default:
		return false
	}
}

// SessionLost reports whether the failure cleared the credential store.
func (e *RequestError) SessionLost() bool {
	return e.Kind == FailureSessionExpired || e.sessionLost
}
