// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package api

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 2 * time.Second

// HealthLive reports that the process is serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]any{
		"status": "alive",
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady reports whether the database and every registered
// dependency are reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.checks)+1)
	ready := true

	if h.db == nil {
		checks["database"] = "not configured"
		ready = false
	} else if err := h.db.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	for _, c := range h.checks {
		status := "ok"
		if err := c.Check(ctx); err != nil {
			status = err.Error()
			ready = false
		}
		checks[c.Name] = status
	}

	data := map[string]any{
		"status":      "ready",
		"checks":      checks,
		"connections": 0,
		"uptime":      time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		data["connections"] = h.hub.GetClientCount()
	}

	if !ready {
		data["status"] = "not_ready"
		NewResponseWriter(w, r).ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service not ready", data)
		return
	}
	NewResponseWriter(w, r).Success(data)
}
