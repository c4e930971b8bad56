package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	iss := NewTokenIssuer("test-secret", time.Hour)
	id := Identity{UserID: uuid.New(), Role: RoleAdmin}

	tok, err := iss.Issue(id)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := iss.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != id {
		t.Errorf("identity = %+v, want %+v", got, id)
	}
}

func TestTokenExpiry(t *testing.T) {
	iss := NewTokenIssuer("test-secret", time.Hour)
	issuedAt := time.Now().Add(-2 * time.Hour)
	iss.now = func() time.Time { return issuedAt }

	tok, err := iss.Issue(Identity{UserID: uuid.New(), Role: RolePatient})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// still valid 59 minutes after issue
	iss.now = func() time.Time { return issuedAt.Add(59 * time.Minute) }
	if _, err := iss.Parse(tok); err != nil {
		t.Fatalf("parse before expiry: %v", err)
	}

	iss.now = time.Now
	if _, err := iss.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestTokenRejections(t *testing.T) {
	iss := NewTokenIssuer("test-secret", time.Hour)
	other := NewTokenIssuer("other-secret", time.Hour)

	foreign, _ := other.Issue(Identity{UserID: uuid.New(), Role: RolePatient})

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: uuid.NewString(),
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	badRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: uuid.NewString(),
		Role:   "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: uuid.NewString(),
		Role:   "patient",
	}).SignedString([]byte("test-secret"))

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not.a.token", ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"alg none", none, ErrInvalidToken},
		{"unknown role", badRole, ErrInvalidToken},
		{"no expiry", noExpiry, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := iss.Parse(tt.raw); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTokenMissingSecret(t *testing.T) {
	iss := NewTokenIssuer("", time.Hour)
	if _, err := iss.Issue(Identity{UserID: uuid.New(), Role: RolePatient}); !errors.Is(err, ErrMissingConfig) {
		t.Fatalf("issue: expected ErrMissingConfig, got %v", err)
	}
	if _, err := iss.Parse("abc"); !errors.Is(err, ErrMissingConfig) {
		t.Fatalf("parse: expected ErrMissingConfig, got %v", err)
	}
}
