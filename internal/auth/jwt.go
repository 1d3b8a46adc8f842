// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

// Package auth validates the bearer credential presented when a realtime
// connection is opened. Tokens are issued elsewhere; this package only
// verifies them.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/townsquare/internal/config"
)

// Claims represents the JWT claims issued by the accounts service.
// The user id travels in the "id" claim; "sub" is accepted as a fallback.
type Claims struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the authenticated user id, preferring the id claim over sub.
func (c *Claims) UserID() (int64, error) {
	if c.ID > 0 {
		return c.ID, nil
	}
	if c.Subject != "" {
		id, err := strconv.ParseInt(c.Subject, 10, 64)
		if err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, errors.New("token carries no user id")
}

// JWTManager validates HS256 tokens signed with the shared secret.
type JWTManager struct {
	secret []byte
}

// NewJWTManager creates a JWT manager from the security configuration.
// It fails if JWT_SECRET is empty.
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	return &JWTManager{secret: []byte(cfg.JWTSecret)}, nil
}

// GenerateToken signs a token for userID that expires after ttl.
func (m *JWTManager) GenerateToken(userID int64, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		ID:       userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, algorithm and expiry and returns the claims.
// Only HS256 is accepted, and a token without an exp claim is rejected.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
