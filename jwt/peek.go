package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by [Peek] when the value is not a decodable JWT.
var ErrNotJWT = errors.New("value is not a decodable jwt")

// Peek decodes the claims of tokenStr without verifying its signature.
// Opaque (non-JWT) credentials return [ErrNotJWT].
func Peek(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, errors.Join(ErrNotJWT, err)
	}
	return claims, nil
}

// ExpiresAt reports the unverified expiry of tokenStr. The boolean is false
// for opaque credentials and tokens without an exp claim.
func ExpiresAt(tokenStr string) (time.Time, bool) {
	claims, err := Peek(tokenStr)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
