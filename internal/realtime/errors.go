// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package realtime

import (
	"errors"
	"fmt"

	"github.com/tomtom215/townsquare/internal/models"
)

// Kind classifies a handler failure.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindPersistence    Kind = "persistence"
	KindValidation     Kind = "validation"
	KindRateLimited    Kind = "rate_limited"
	KindInternal       Kind = "internal"
)

// Error is a handler failure carrying the short reason shown to the
// originating connection. Err, when set, is logged but never sent.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for errors that are not
// an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// storeError classifies a store failure. failMsg is shown for
// infrastructure failures.
func storeError(err error, failMsg string) *Error {
	switch {
	case errors.Is(err, models.ErrNotParticipant):
		return NewError(KindAuthorization, "Not a participant in this conversation", err)
	case errors.Is(err, models.ErrNotFound):
		return NewError(KindNotFound, "Conversation not found", err)
	default:
		return NewError(KindPersistence, failMsg, err)
	}
}

// asError converts any handler error into an *Error.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(KindInternal, "Internal error", err)
}
