// Package auth turns bearer tokens issued by the identity provider into the
// principal every booking operation is evaluated against.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Principal is the caller of an operation. The zero value is an anonymous
// visitor.
type Principal struct {
	UserID    uuid.UUID
	Email     string
	FullName  string
	Role      string
	Anonymous bool
}

// Authenticated is false for anonymous sessions and for callers with no token.
func (p Principal) Authenticated() bool {
	return p.UserID != uuid.Nil && !p.Anonymous
}

type Claims struct {
	Email       string `json:"email,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Role        string `json:"role,omitempty"`
	IsAnonymous bool   `json:"is_anonymous,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-signed session tokens.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Parse(tokenString string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Principal{}, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = RolePatient
	}

	return Principal{
		UserID:    id,
		Email:     claims.Email,
		FullName:  claims.FullName,
		Role:      role,
		Anonymous: claims.IsAnonymous,
	}, nil
}

// Issue signs a token for p. Used by seed and load tooling and in tests.
func (v *Verifier) Issue(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:       p.Email,
		FullName:    p.FullName,
		Role:        p.Role,
		IsAnonymous: p.Anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal stored by the auth middleware, or an
// anonymous one.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(contextKey{}).(Principal); ok {
		return p
	}
	return Principal{Anonymous: true}
}
