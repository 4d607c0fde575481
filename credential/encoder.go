package credential

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const pairFormatVersionCurrent = 1

type envelope struct {
	Version int    `json:"v"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Encode serializes p into the versioned envelope persisted by every backend.
func Encode(p Pair) ([]byte, error) {
	if !p.Valid() {
		return nil, ErrPartialPair
	}
	return json.Marshal(envelope{
		Version: pairFormatVersionCurrent,
		Access:  p.Access,
		Refresh: p.Refresh,
	})
}

// Decode parses a stored envelope. Unknown versions, unknown fields and
// partial pairs are rejected with ErrMalformed.
func Decode(data []byte) (Pair, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Pair{}, ErrMalformed
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return Pair{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Pair{}, fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	if env.Version != pairFormatVersionCurrent {
		return Pair{}, fmt.Errorf("%w: unsupported version %d", ErrMalformed, env.Version)
	}

	p := Pair{Access: env.Access, Refresh: env.Refresh}
	if !p.Valid() {
		return Pair{}, fmt.Errorf("%w: %v", ErrMalformed, ErrPartialPair)
	}
	return p, nil
}
