// Package auth provides authentication utilities for krishi
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/aethra/krishi/internal/cache"
	"github.com/aethra/krishi/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Token kinds
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims represents JWT claims for krishi
type Claims struct {
	AccountID uuid.UUID `json:"account_id"`
	Username  string    `json:"username,omitempty"`
	IsStaff   bool      `json:"is_staff,omitempty"`
	Kind      string    `json:"kind"`
	jwt.RegisteredClaims
}

// Principal returns the caller identity carried by the claims
func (c *Claims) Principal() Principal {
	return Principal{AccountID: c.AccountID, Username: c.Username, IsStaff: c.IsStaff}
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// JWTService handles JWT operations
type JWTService struct {
	secretKey          []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	issuer             string
	revoked            cache.Store
}

// NewJWTService creates a new JWT service. Revoked token ids are kept in
// store until the token would have expired anyway.
func NewJWTService(cfg config.AuthConfig, store cache.Store) *JWTService {
	return &JWTService{
		secretKey:          []byte(cfg.JWTSecret),
		accessTokenExpiry:  cfg.AccessExpiry,
		refreshTokenExpiry: cfg.RefreshExpiry,
		issuer:             "krishi",
		revoked:            store,
	}
}

// GenerateTokenPair generates access and refresh tokens
func (s *JWTService) GenerateTokenPair(p Principal) (*TokenPair, error) {
	now := time.Now()
	accessExpiresAt := now.Add(s.accessTokenExpiry)

	accessToken, err := s.sign(&Claims{
		AccountID:        p.AccountID,
		Username:         p.Username,
		IsStaff:          p.IsStaff,
		Kind:             KindAccess,
		RegisteredClaims: s.registered(p.AccountID, now, accessExpiresAt),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	// Create refresh token (minimal claims)
	refreshToken, err := s.sign(&Claims{
		AccountID:        p.AccountID,
		Kind:             KindRefresh,
		RegisteredClaims: s.registered(p.AccountID, now, now.Add(s.refreshTokenExpiry)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExpiresAt,
		TokenType:    "Bearer",
	}, nil
}

func (s *JWTService) registered(accountID uuid.UUID, now, expires time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    s.issuer,
		Subject:   accountID.String(),
		ID:        uuid.New().String(),
	}
}

func (s *JWTService) sign(claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
}

// ValidateToken validates a JWT token of the given kind and returns the claims
func (s *JWTService) ValidateToken(ctx context.Context, tokenString, kind string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("expected %s token, got %q", kind, claims.Kind)
	}

	revoked, err := s.IsRevoked(ctx, claims)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("token has been revoked")
	}

	return claims, nil
}

// Revoke blocks the token identified by claims until it expires
func (s *JWTService) Revoke(ctx context.Context, claims *Claims) error {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	if err := s.revoked.Set(ctx, revokedKey(claims.ID), claims.AccountID.String(), ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id has been revoked
func (s *JWTService) IsRevoked(ctx context.Context, claims *Claims) (bool, error) {
	_, found, err := s.revoked.Get(ctx, revokedKey(claims.ID))
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return found, nil
}

func revokedKey(jti string) string {
	return "jwt:revoked:" + jti
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a bcrypt hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
