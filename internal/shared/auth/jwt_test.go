package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSignAndVerifyRoundTripClaims(t *testing.T) {
	issuer, err := NewIssuer("secret", "permit-backend", "permit-clients")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	token, err := issuer.Sign("user-1", Claims{Email: "a@example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "a@example.com" || claims.Name != "Ada" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Role != RoleCustomer {
		t.Fatalf("expected default role %q, got %q", RoleCustomer, claims.Role)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != DefaultTTL {
		t.Fatalf("expected ttl %s, got %s", DefaultTTL, got)
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	a, _ := NewIssuer("secret", "permit-backend", "clients-a")
	b, _ := NewIssuer("secret", "permit-backend", "clients-b")

	token, err := a.Sign("user-1", Claims{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := b.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer, _ := NewIssuer("secret", "permit-backend", "")
	issued := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return issued }

	token, err := issuer.Sign("user-1", Claims{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	issuer.now = func() time.Time { return issued.Add(DefaultTTL + time.Minute) }
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewIssuerRequiresSecretInProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	if _, err := NewIssuer("", "permit-backend", ""); err == nil {
		t.Fatalf("expected error without secret in production")
	}
}
