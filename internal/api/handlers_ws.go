// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/townsquare/internal/auth"
	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/metrics"
	ws "github.com/tomtom215/townsquare/internal/websocket"
)

// WebSocket authenticates the handshake, upgrades it and registers the
// connection with the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	log := logging.Ctx(r.Context())

	if h.hub == nil || h.service == nil {
		metrics.WSRejectedHandshakes.WithLabelValues("unavailable").Inc()
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}

	identity, err := h.authn.Authenticate(r)
	if err != nil {
		reason := "invalid_token"
		if errors.Is(err, auth.ErrMissingCredential) {
			reason = "missing_token"
		}
		metrics.WSRejectedHandshakes.WithLabelValues(reason).Inc()
		log.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket handshake rejected")
		NewResponseWriter(w, r).Unauthorized("Authentication required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.WSRejectedHandshakes.WithLabelValues("upgrade_failed").Inc()
		log.Warn().Err(err).Int64("user_id", identity.UserID).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn, identity.UserID, identity.Username)
	if err := h.hub.Register(client); err != nil {
		metrics.WSRejectedHandshakes.WithLabelValues("hub_closed").Inc()
		log.Warn().Err(err).Int64("user_id", identity.UserID).Msg("WebSocket registration refused")
		_ = conn.Close()
		return
	}

	log.Debug().
		Int64("user_id", identity.UserID).
		Uint64("client_id", client.ID()).
		Msg("WebSocket connected")

	// The connection outlives the request; keep its ids but not its deadline.
	client.Start(context.WithoutCancel(r.Context()), h.service.Router)
}
