package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/infrastructure/auth"
)

func TestJWTManagerGenerateAndVerify(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("super-secret", time.Minute)
	principal := domain.Principal{Subject: "teller-7", Role: domain.RoleOperator}

	token, err := manager.Generate(principal)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("expected token to verify, got %v", err)
	}

	if claims.Principal() != principal {
		t.Fatalf("expected claims to match principal, got %+v", claims.Principal())
	}
}

func TestJWTManagerGenerateRejectsInvalidPrincipal(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("secret", time.Minute)

	if _, err := manager.Generate(domain.Principal{Role: domain.RoleAdmin}); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, err := manager.Generate(domain.Principal{Subject: "x", Role: "root"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestJWTManagerVerifyErrors(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("secret", time.Minute)

	sign := func(t *testing.T, claims auth.Claims, method jwt.SigningMethod, key any) string {
		t.Helper()
		token, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return token
	}

	expired := auth.Claims{
		Role: domain.RoleViewer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "expired",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
		},
	}
	unknownRole := auth.Claims{
		Role: "root",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "mallory",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	valid := auth.Claims{
		Role: domain.RoleViewer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "viewer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", sign(t, expired, jwt.SigningMethodHS256, []byte("secret")), domain.ErrExpiredToken},
		{"wrong secret", sign(t, valid, jwt.SigningMethodHS256, []byte("other")), domain.ErrInvalidToken},
		{"unknown role", sign(t, unknownRole, jwt.SigningMethodHS256, []byte("secret")), domain.ErrInvalidToken},
		{"unsigned", sign(t, valid, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType), domain.ErrInvalidToken},
		{"garbage", "not-a-token", domain.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := manager.Verify(tt.token); err != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
