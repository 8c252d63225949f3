package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"spendly/internal/core"
)

const testSecret = "0123456789abcdef0123"

func TestIssueVerifyRoundTrip(t *testing.T) {
	iss := NewIssuer(testSecret, time.Hour)
	tok, err := iss.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := iss.Verify(tok)
	if err != nil || got != "user-1" {
		t.Fatalf("verify = %q, %v", got, err)
	}
}

func TestVerifyRejects(t *testing.T) {
	iss := NewIssuer(testSecret, time.Hour)
	good, _ := iss.Issue("user-1")

	expired := NewIssuer(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.Issue("user-1")

	other, _ := NewIssuer("another-secret-value", time.Hour).Issue("user-1")

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "user-1"}).SignedString([]byte(testSecret))

	tests := map[string]string{
		"expired":      old,
		"wrong secret": other,
		"alg none":     none,
		"no expiry":    noExp,
		"garbage":      "not-a-token",
		"tampered":     good + "x",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := iss.Verify(tok)
			if !errors.Is(err, core.ErrUnauthenticated) {
				t.Fatalf("expected unauthenticated, got %v", err)
			}
		})
	}
}

func TestDefaultTTL(t *testing.T) {
	iss := NewIssuer(testSecret, 0)
	if iss.ttl != DefaultTokenTTL {
		t.Fatalf("ttl = %v", iss.ttl)
	}
}
