// Package auth inspects the bearer tokens the backend issues. Tokens are never
// verified here; the backend stays the authority and rejects forged ones.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingToken is returned when no bearer token was provided.
var ErrMissingToken = errors.New("access token is required")

var parser = jwt.NewParser(jwt.WithoutClaimsValidation())

// Inspect decodes the claims of tokenString without checking its signature.
func Inspect(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("decoding access token: %w", err)
	}
	return claims, nil
}

// Expired reports whether the token's exp claim is at or before now. Tokens
// without exp never expire from the edge's point of view.
func Expired(tokenString string, now time.Time) (bool, error) {
	claims, err := Inspect(tokenString)
	if err != nil {
		return false, err
	}
	if claims.ExpiresAt == nil {
		return false, nil
	}
	return !now.Before(claims.ExpiresAt.Time), nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
