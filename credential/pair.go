package credential

import "errors"

// ErrPartialPair is returned by Store.Write and Encode when one half of the
// pair is missing.
var ErrPartialPair = errors.New("credential pair incomplete")

// ErrMalformed is returned by Decode for values that are not a valid encoded pair.
var ErrMalformed = errors.New("credential value malformed")

// Pair is the short-lived/long-lived credential pair issued by the backend.
// Access is attached to every authorized call; Refresh is only ever exchanged
// for a new Access value.
type Pair struct {
	Access  string
	Refresh string
}

// Valid reports whether both halves are present.
func (p Pair) Valid() bool {
	return p.Access != "" && p.Refresh != ""
}

// WithAccess returns a copy of p carrying a renewed access credential and the
// unchanged refresh credential.
func (p Pair) WithAccess(access string) Pair {
	return Pair{Access: access, Refresh: p.Refresh}
}
