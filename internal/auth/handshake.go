// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TokenQueryParam is the handshake auth parameter carrying the bearer token.
const TokenQueryParam = "token"

var (
	// ErrMissingCredential is returned when the handshake carries no token.
	ErrMissingCredential = errors.New("authentication credential missing")

	// ErrInvalidCredential is returned when the token fails verification.
	ErrInvalidCredential = errors.New("authentication credential invalid")
)

// Identity is the authenticated principal bound to a connection.
type Identity struct {
	UserID   int64
	Username string
}

// TokenValidator verifies a raw bearer token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Authenticator checks the handshake request before it is upgraded.
type Authenticator struct {
	tokens TokenValidator
}

// NewAuthenticator returns an Authenticator backed by tokens.
func NewAuthenticator(tokens TokenValidator) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Authenticate extracts and verifies the handshake credential. Errors wrap
// ErrMissingCredential or ErrInvalidCredential.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	raw := TokenFromRequest(r)
	if raw == "" {
		return Identity{}, ErrMissingCredential
	}

	claims, err := a.tokens.ValidateToken(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	return Identity{UserID: userID, Username: claims.Username}, nil
}

// TokenFromRequest reads the token query parameter, falling back to an
// Authorization: Bearer header for non-browser clients.
func TokenFromRequest(r *http.Request) string {
	if tok := strings.TrimSpace(r.URL.Query().Get(TokenQueryParam)); tok != "" {
		return tok
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
