package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the part of a backend-issued access token the edge reads.
type Claims struct {
	TokenType string `json:"type,omitempty"`
	jwt.RegisteredClaims
}
