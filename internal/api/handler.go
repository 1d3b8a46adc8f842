// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/townsquare/internal/auth"
	"github.com/tomtom215/townsquare/internal/config"
	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/realtime"
	ws "github.com/tomtom215/townsquare/internal/websocket"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck is one named dependency probed by /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler serves the socket, health and internal collaborator endpoints.
type Handler struct {
	cfg       *config.Config
	hub       *ws.Hub
	service   *realtime.Service
	authn     *auth.Authenticator
	db        Pinger
	checks    []ReadinessCheck
	startTime time.Time
	upgrader  websocket.Upgrader
}

// NewHandler creates a Handler. db may be nil, in which case readiness
// reports the database as unavailable.
func NewHandler(cfg *config.Config, hub *ws.Hub, service *realtime.Service, authn *auth.Authenticator, db Pinger) *Handler {
	h := &Handler{
		cfg:       cfg,
		hub:       hub,
		service:   service,
		authn:     authn,
		db:        db,
		startTime: time.Now(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// AddReadinessCheck registers an extra dependency for /health/ready.
func (h *Handler) AddReadinessCheck(name string, check func(ctx context.Context) error) {
	h.checks = append(h.checks, ReadinessCheck{Name: name, Check: check})
}

// checkWebSocketOrigin validates the Origin header against
// security.cors_origins. Non-browser clients omit Origin and are allowed;
// they still need a valid token.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.cfg == nil {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected: origin not allowed")
	return false
}
