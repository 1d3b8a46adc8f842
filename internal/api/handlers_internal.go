// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/townsquare/internal/models"
	"github.com/tomtom215/townsquare/internal/realtime"
)

// maxInternalBody bounds collaborator request bodies.
const maxInternalBody = 1 << 20

// emitResult reports how many connections a push reached.
type emitResult struct {
	Delivered int `json:"delivered"`
}

// EmitToUser handles POST /api/v1/internal/emit/user/{userID}.
//
// @Summary Push an event to every connection of a user
// @Description Queues the event on each live connection of the user. An offline user is not an error; delivered is 0.
// @Tags Internal
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userID path int true "Recipient user ID"
// @Param request body realtime.EmitRequest true "Event name and payload"
// @Success 200 {object} APIResponse{data=emitResult} "Connections reached"
// @Failure 400 {object} APIResponse "Invalid user ID or event"
// @Failure 401 {object} APIResponse "Missing or wrong internal token"
// @Router /emit/user/{userID} [post]
func (h *Handler) EmitToUser(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := pathInt64(rw, r, "userID")
	if !ok {
		return
	}
	var req realtime.EmitRequest
	if !decodeBody(rw, w, r, &req) {
		return
	}

	n, err := h.service.Gateway.EmitToUser(userID, req)
	if err != nil {
		rw.RealtimeError(err)
		return
	}
	rw.Success(emitResult{Delivered: n})
}

// EmitToRoom handles POST /api/v1/internal/emit/room/{room}.
//
// @Summary Push an event to a room
// @Description Broadcasts to every connection joined to the room. Rooms are user:<id> or conversation:<id>.
// @Tags Internal
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param room path string true "Room ID, e.g. conversation:42"
// @Param request body realtime.EmitRequest true "Event name and payload"
// @Success 200 {object} APIResponse{data=emitResult} "Connections reached"
// @Failure 400 {object} APIResponse "Malformed room or event"
// @Failure 401 {object} APIResponse "Missing or wrong internal token"
// @Router /emit/room/{room} [post]
func (h *Handler) EmitToRoom(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req realtime.EmitRequest
	if !decodeBody(rw, w, r, &req) {
		return
	}

	n, err := h.service.Gateway.EmitToRoom(chi.URLParam(r, "room"), req)
	if err != nil {
		rw.RealtimeError(err)
		return
	}
	rw.Success(emitResult{Delivered: n})
}

// CreateNotification handles POST /api/v1/internal/notifications.
//
// @Summary Store and deliver a notification
// @Description Persists the notification, then pushes new_notification to the recipient if online.
// @Tags Internal
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.NewNotification true "Notification"
// @Success 201 {object} APIResponse{data=models.Notification} "Notification created"
// @Failure 400 {object} APIResponse "Validation failed"
// @Failure 401 {object} APIResponse "Missing or wrong internal token"
// @Failure 503 {object} APIResponse "Store unavailable"
// @Router /notifications [post]
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var in models.NewNotification
	if !decodeBody(rw, w, r, &in) {
		return
	}

	n, err := h.service.Gateway.Notify(r.Context(), in)
	if err != nil {
		rw.RealtimeError(err)
		return
	}
	rw.WithStatus(http.StatusCreated, n)
}

// NotifyKind handles POST /api/v1/internal/notifications/{kind}. A fan-out
// that partly failed still returns the created notifications with 207.
//
// @Summary Produce notifications of a known kind
// @Description Builds recipients and messages for the kind (follow, reaction, comment, mention, new_story, friend requests). The body shape depends on the kind; see GET /notifications/kinds.
// @Tags Internal
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Notification kind"
// @Param request body object true "Kind-specific request"
// @Success 200 {object} APIResponse{data=realtime.KindResult} "Notifications created"
// @Success 207 {object} APIResponse{data=realtime.KindResult} "Some recipients failed"
// @Failure 400 {object} APIResponse "Validation failed"
// @Failure 404 {object} APIResponse "Unknown kind"
// @Failure 503 {object} APIResponse "Store unavailable"
// @Router /notifications/{kind} [post]
func (h *Handler) NotifyKind(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInternalBody))
	if err != nil {
		rw.BadRequest("Request body too large or unreadable")
		return
	}

	res, err := h.service.Gateway.NotifyKind(r.Context(), chi.URLParam(r, "kind"), body)
	switch {
	case err == nil:
		rw.Success(res)
	case len(res.Notifications) > 0:
		rw.Partial(res, err)
	default:
		rw.RealtimeError(err)
	}
}

// Presence handles GET /api/v1/internal/presence/{userID}.
//
// @Summary Report whether a user is connected
// @Tags Internal
// @Produce json
// @Security BearerAuth
// @Param userID path int true "User ID"
// @Success 200 {object} APIResponse{data=realtime.Presence} "Presence"
// @Failure 400 {object} APIResponse "Invalid user ID"
// @Router /presence/{userID} [get]
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := pathInt64(rw, r, "userID")
	if !ok {
		return
	}
	rw.Success(h.service.Gateway.Presence(userID))
}

// NotificationKinds handles GET /api/v1/internal/notifications/kinds.
//
// @Summary List notification kinds
// @Tags Internal
// @Produce json
// @Security BearerAuth
// @Success 200 {object} APIResponse{data=[]string} "Kind names, sorted"
// @Router /notifications/kinds [get]
func (h *Handler) NotificationKinds(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.service.Gateway.Kinds())
}

func pathInt64(rw *ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, name+" must be a positive integer", nil)
		return 0, false
	}
	return v, true
}

func decodeBody(rw *ResponseWriter, w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInternalBody))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large")
			return false
		}
		rw.BadRequest("Invalid request body")
		return false
	}
	return true
}
