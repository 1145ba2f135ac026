// Package polltoken issues and verifies the short-lived signed tokens the
// storefront presents when polling financing-session status. The token binds
// the poll loop to a single session reference so a browser cannot probe the
// status of arbitrary sessions.
package polltoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "avvance-bridge"

var (
	// ErrInvalid reports a token that failed signature or claim validation.
	ErrInvalid = errors.New("polltoken: invalid token")
	// ErrExpired reports a token past its expiry.
	ErrExpired = errors.New("polltoken: token expired")
)

// Signer mints and verifies HS256 poll tokens with a shared secret.
type Signer struct {
	Secret []byte
	TTL    time.Duration
}

// Sign returns a signed token whose subject is the session reference.
func (s *Signer) Sign(sessionRef string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   sessionRef,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("polltoken: sign: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and returns the session
// reference it was bound to.
func (s *Signer) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return s.Secret, nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpired
		}
		return "", ErrInvalid
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}
