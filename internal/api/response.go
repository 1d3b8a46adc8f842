// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/realtime"
	"github.com/tomtom215/townsquare/internal/validation"
)

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an error response.
type APIError struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// Details contains additional error details (optional)
	Details any `json:"details,omitempty"`

	RequestID string `json:"request_id,omitempty"`
}

// APIMeta contains optional response metadata.
type APIMeta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// Error codes for API responses
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeDatabaseError      = "DATABASE_ERROR"
)

// ResponseWriter writes enveloped responses for one request.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

// NewResponseWriter creates a new response writer.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{
		w:         w,
		r:         r,
		startTime: time.Now(),
	}
}

// Success writes a 200 response with data.
func (rw *ResponseWriter) Success(data any) {
	rw.WithStatus(http.StatusOK, data)
}

// WithStatus writes a successful response with an explicit status code.
func (rw *ResponseWriter) WithStatus(statusCode int, data any) {
	rw.writeJSON(statusCode, APIResponse{
		Success: true,
		Data:    data,
		Meta:    rw.meta(),
	})
}

// Error writes an error response with the given status code.
func (rw *ResponseWriter) Error(statusCode int, code, message string) {
	rw.ErrorWithDetails(statusCode, code, message, nil)
}

// ErrorWithDetails writes an error response with additional details.
func (rw *ResponseWriter) ErrorWithDetails(statusCode int, code, message string, details any) {
	meta := rw.meta()
	rw.writeJSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: meta.RequestID,
		},
		Meta: meta,
	})
}

// BadRequest writes a 400 Bad Request error.
func (rw *ResponseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeBadRequest, message)
}

// Unauthorized writes a 401 Unauthorized error.
func (rw *ResponseWriter) Unauthorized(message string) {
	rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// TooManyRequests writes a 429 Too Many Requests error.
func (rw *ResponseWriter) TooManyRequests(message string) {
	rw.Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, message)
}

// ServiceUnavailable writes a 503 Service Unavailable error.
func (rw *ResponseWriter) ServiceUnavailable(message string) {
	rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// RealtimeError maps a realtime error onto a status code and envelope.
// Persistence and internal causes are logged here and never echoed.
func (rw *ResponseWriter) RealtimeError(err error) {
	e := asRealtimeError(err)
	status, code := statusForKind(e.Kind)
	if status >= http.StatusInternalServerError {
		logging.Ctx(rw.r.Context()).Error().
			Err(e.Err).
			Str("kind", string(e.Kind)).
			Str("path", rw.r.URL.Path).
			Msg(e.Message)
	}

	var details any
	var verr *validation.RequestValidationError
	if errors.As(e.Err, &verr) {
		details = verr.Details()
	}
	rw.ErrorWithDetails(status, code, e.Message, details)
}

// Partial writes a 207 response carrying both the data that was produced
// and the error that stopped the rest.
func (rw *ResponseWriter) Partial(data any, err error) {
	e := asRealtimeError(err)
	logging.Ctx(rw.r.Context()).Warn().
		Err(e.Err).
		Str("kind", string(e.Kind)).
		Str("path", rw.r.URL.Path).
		Msg("partial failure: " + e.Message)

	_, code := statusForKind(e.Kind)
	meta := rw.meta()
	rw.writeJSON(http.StatusMultiStatus, APIResponse{
		Success: false,
		Data:    data,
		Error:   &APIError{Code: code, Message: e.Message, RequestID: meta.RequestID},
		Meta:    meta,
	})
}

func asRealtimeError(err error) *realtime.Error {
	var e *realtime.Error
	if errors.As(err, &e) {
		return e
	}
	return realtime.NewError(realtime.KindInternal, "Internal error", err)
}

func statusForKind(kind realtime.Kind) (int, string) {
	switch kind {
	case realtime.KindValidation:
		return http.StatusBadRequest, ErrCodeValidationFailed
	case realtime.KindAuthentication:
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case realtime.KindAuthorization:
		return http.StatusForbidden, ErrCodeForbidden
	case realtime.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case realtime.KindRateLimited:
		return http.StatusTooManyRequests, ErrCodeTooManyRequests
	case realtime.KindPersistence:
		return http.StatusServiceUnavailable, ErrCodeDatabaseError
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

func (rw *ResponseWriter) meta() *APIMeta {
	return &APIMeta{
		RequestID:  logging.RequestIDFromContext(rw.r.Context()),
		Timestamp:  time.Now().UTC(),
		DurationMs: time.Since(rw.startTime).Milliseconds(),
	}
}

// writeJSON writes JSON response with proper headers.
func (rw *ResponseWriter) writeJSON(statusCode int, data any) {
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.Header().Set("Cache-Control", "no-store")
	rw.w.WriteHeader(statusCode)

	if err := json.NewEncoder(rw.w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
