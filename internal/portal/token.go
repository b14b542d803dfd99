// Package portal bridges negotiated telnet links to the game backend: it
// drives a stack of mode handlers per session, keeps a bearer token
// refreshed, and relays messages in both directions.
package portal

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is the uniform verification failure surfaced to
// callers. Internal verification detail is logged, never shown.
var ErrUnauthorized = errors.New("portal: unauthorized")

// Claims are the verified bearer token claims the portal consumes.
type Claims struct {
	jwt.RegisteredClaims
}

// AccountID returns the token subject.
func (c *Claims) AccountID() string {
	return c.Subject
}

// ExpiresAt returns the token expiry, or the zero time when absent.
func (c *Claims) ExpiresAt() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// TokenVerifier checks HS256 bearer tokens issued by the backend.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier over the shared HS256 secret.
func NewTokenVerifier(secret []byte) *TokenVerifier {
	return &TokenVerifier{secret: secret}
}

// Verify parses and validates a token, returning its claims.
func (v *TokenVerifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if !parsed.Valid {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
