package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cityride/dispatch/internal/domain/user"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrInvalidClaims = errors.New("token carries malformed claims")
)

// Actor is the verified identity performing an action. The core only
// ever sees this pair; raw credentials never cross the service boundary.
type Actor struct {
	ID   uuid.UUID
	Role user.Role
}

// Claims is the JWT claim set issued at login.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	expiry time.Duration
	issuer string
}

func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		expiry: expiry,
		issuer: "cityride-dispatch",
	}
}

// Issue creates a signed token for the given account.
func (m *TokenManager) Issue(account *user.Account) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: string(account.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses and validates a raw token, returning the actor it
// identifies. Subject and role are normalized to their canonical types
// here; nothing downstream compares raw strings.
func (m *TokenManager) Verify(raw string) (Actor, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Actor{}, ErrInvalidClaims
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Actor{}, ErrInvalidClaims
	}
	role, err := user.ParseRole(claims.Role)
	if err != nil {
		return Actor{}, ErrInvalidClaims
	}

	return Actor{ID: id, Role: role}, nil
}
