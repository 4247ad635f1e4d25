package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/chequer/internal/domain"
)

// Claims represents the JWT claims. The subject is carried in RegisteredClaims.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal returns the caller described by the claims.
func (c *Claims) Principal() domain.Principal {
	return domain.Principal{Subject: c.Subject, Role: c.Role}
}

// JWTManager issues and verifies HS256 tokens. The server only verifies; the CLI
// issues tokens for operators who hold the shared secret.
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
	now           func() time.Time
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// Generate signs a token for principal.
func (m *JWTManager) Generate(principal domain.Principal) (string, error) {
	if principal.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", domain.ErrInvalidToken)
	}
	if !principal.Role.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", domain.ErrInvalidToken, principal.Role)
	}

	now := m.now()
	claims := Claims{
		Role: principal.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Verify verifies a JWT token and returns the claims
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithTimeFunc(m.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrExpiredToken
		}
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	if claims.Subject == "" || !claims.Role.IsValid() {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}
