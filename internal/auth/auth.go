// Package auth issues and verifies the bearer tokens used by the API.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ieltsprep/mockcenter/internal/model"
)

const issuer = "mockcenter"

// ErrNoBearer is returned when a request carries no bearer token.
var ErrNoBearer = errors.New("missing bearer token")

// Claims are the token claims. ID (jti) is the auth session the token is bound to.
type Claims struct {
	Role model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and parses HS256 tokens.
type Service struct {
	hmac []byte
}

func NewService(secret string) *Service {
	return &Service{hmac: []byte(secret)}
}

// Issue signs a token for user bound to the auth session sess.
func (s *Service) Issue(user *model.User, sess *model.AuthSession) (string, error) {
	claims := &Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			ID:        sess.ID,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.hmac)
}

// Parse verifies the signature, issuer and expiry of a token.
func (s *Service) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.hmac, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if c.Subject == "" || c.ID == "" {
		return nil, errors.New("token is missing subject or session")
	}
	return c, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", ErrNoBearer
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	if tok == "" {
		return "", ErrNoBearer
	}
	return tok, nil
}

// DefaultTokenTTL is the access token lifetime used when none is configured.
const DefaultTokenTTL = 8 * time.Hour

// TTLOrDefault returns ttl, or DefaultTokenTTL when ttl is not positive.
func TTLOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTokenTTL
	}
	return ttl
}
