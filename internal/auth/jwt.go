package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/securewatch/securewatch/internal/rbac"
)

// ErrNoSecret is returned when a TokenIssuer has no signing key
var ErrNoSecret = errors.New("JWT secret not initialized")

// JWTClaims represents the JWT token claims
type JWTClaims struct {
	Email string    `json:"email"`
	Role  rbac.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim
func (c *JWTClaims) UserID() string {
	return c.Subject
}

// TokenIssuer signs and validates HS256 access tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. Tokens expire after ttl.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// GenerateSecret returns 32 random bytes, hex encoded (64 characters)
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// TTL returns the token lifetime
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// GenerateToken creates a new JWT token for a user
func (i *TokenIssuer) GenerateToken(userID, email string, role rbac.Role) (string, error) {
	if len(i.secret) == 0 {
		return "", ErrNoSecret
	}

	now := i.now()
	claims := JWTClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateToken validates a JWT token and returns the claims
func (i *TokenIssuer) ValidateToken(tokenString string) (*JWTClaims, error) {
	if len(i.secret) == 0 {
		return nil, ErrNoSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(i.now))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid && claims.Subject != "" {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
