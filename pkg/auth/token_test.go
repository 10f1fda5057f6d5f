package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mint(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestInspectReadsClaimsWithoutSecret(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	token := mint(t, Claims{
		TokenType:        "access",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "42", ExpiresAt: jwt.NewNumericDate(exp)},
	})

	claims, err := Inspect(token)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if claims.Subject != "42" || claims.TokenType != "access" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.ExpiresAt.Time.Equal(exp) {
		t.Fatalf("expected exp %s, got %s", exp, claims.ExpiresAt.Time)
	}
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	past := mint(t, Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))}})
	if expired, err := Expired(past, now); err != nil || !expired {
		t.Fatalf("expected expired token, expired=%v err=%v", expired, err)
	}

	future := mint(t, Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}})
	if expired, err := Expired(future, now); err != nil || expired {
		t.Fatalf("expected live token, expired=%v err=%v", expired, err)
	}

	noExp := mint(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "7"}})
	if expired, err := Expired(noExp, now); err != nil || expired {
		t.Fatalf("token without exp should not expire, expired=%v err=%v", expired, err)
	}
}

func TestInspectRejectsGarbage(t *testing.T) {
	if _, err := Inspect("   "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := Inspect("not-a-jwt"); err == nil {
		t.Fatalf("expected malformed token error")
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  xyz ": "xyz",
		"Basic abc":    "",
		"":             "",
		"Bearer":       "",
	}
	for header, want := range cases {
		if got := BearerToken(header); got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
