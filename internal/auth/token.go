package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *TokenIssuer) Configured() bool {
	return len(t.secret) > 0
}

func (t *TokenIssuer) Issue(id Identity) (string, error) {
	if !t.Configured() {
		return "", ErrMissingConfig
	}
	now := t.now()
	c := Claims{
		UserID: id.UserID.String(),
		Role:   id.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse never tells the caller why a token was rejected.
func (t *TokenIssuer) Parse(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrMissingToken
	}
	if !t.Configured() {
		return Identity{}, ErrMissingConfig
	}

	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(tok *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	},
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return Identity{}, ErrInvalidToken
	}
	uid, err := uuid.Parse(c.UserID)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	role, err := ParseRole(c.Role)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: uid, Role: role}, nil
}
