// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package realtime

import (
	"bytes"
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/metrics"
	"github.com/tomtom215/townsquare/internal/validation"
	"github.com/tomtom215/townsquare/internal/websocket"
)

// HandlerFunc handles one decoded inbound event.
type HandlerFunc func(ctx context.Context, c *websocket.Client, data json.RawMessage) error

// Typed wraps a handler taking a decoded, validated payload of type P.
// Decoding and validation failures become validation errors before fn runs.
func Typed[P any](fn func(ctx context.Context, c *websocket.Client, p *P) error) HandlerFunc {
	return func(ctx context.Context, c *websocket.Client, data json.RawMessage) error {
		p := new(P)
		if len(data) > 0 && !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
			if err := json.Unmarshal(data, p); err != nil {
				return NewError(KindValidation, "Invalid payload", err)
			}
		}
		if verr := validation.ValidateStruct(p); verr != nil {
			return NewError(KindValidation, verr.Error(), verr)
		}
		return fn(ctx, c, p)
	}
}

// Routes maps inbound event names to handlers.
type Routes map[string]HandlerFunc

// Router dispatches inbound frames and converts every failure into an error
// event for the originating connection. It implements websocket.Dispatcher.
type Router struct {
	hub    *websocket.Hub
	routes Routes
}

// NewRouter validates routes and builds a router.
func NewRouter(hub *websocket.Hub, routes Routes) (*Router, error) {
	if hub == nil {
		return nil, fmt.Errorf("router requires a hub")
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("router requires at least one route")
	}
	table := make(Routes, len(routes))
	for event, h := range routes {
		if event == "" {
			return nil, fmt.Errorf("route with empty event name")
		}
		if h == nil {
			return nil, fmt.Errorf("route %q has no handler", event)
		}
		table[event] = h
	}
	return &Router{hub: hub, routes: table}, nil
}

// Events returns the routed event names, sorted.
func (r *Router) Events() []string {
	events := make([]string, 0, len(r.routes))
	for event := range r.routes {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

// HandleFrame decodes frame and runs its handler.
func (r *Router) HandleFrame(ctx context.Context, c *websocket.Client, frame []byte) {
	start := time.Now()

	in, err := websocket.ParseInbound(frame)
	if err != nil {
		r.fail(ctx, c, "", NewError(KindValidation, "Malformed event", err))
		metrics.RecordEvent("unknown", string(KindValidation), time.Since(start))
		return
	}

	handler, ok := r.routes[in.Event]
	if !ok {
		r.fail(ctx, c, in.Event, NewError(KindValidation, "Unknown event", nil))
		metrics.RecordEvent("unknown", string(KindValidation), time.Since(start))
		return
	}

	if !c.Allow() {
		r.fail(ctx, c, in.Event, NewError(KindRateLimited, "rate limit exceeded", nil))
		metrics.RecordEvent(in.Event, string(KindRateLimited), time.Since(start))
		return
	}

	result := "ok"
	if err := r.invoke(ctx, handler, c, in.Data); err != nil {
		e := asError(err)
		result = string(e.Kind)
		r.fail(ctx, c, in.Event, e)
	}
	metrics.RecordEvent(in.Event, result, time.Since(start))
}

// invoke runs handler, turning a panic into an internal error.
func (r *Router) invoke(ctx context.Context, handler HandlerFunc, c *websocket.Client, data json.RawMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Ctx(ctx).Error().
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Int64("user_id", c.UserID()).
				Msg("recovered panic in event handler")
			err = NewError(KindInternal, "Internal error", fmt.Errorf("panic: %v", rec))
		}
	}()
	return handler(ctx, c, data)
}

func (r *Router) fail(ctx context.Context, c *websocket.Client, event string, e *Error) {
	ev := logging.Ctx(ctx).Warn()
	if e.Kind == KindPersistence || e.Kind == KindInternal {
		ev = logging.Ctx(ctx).Error()
	}
	ev.Err(e.Err).
		Str("event", event).
		Str("kind", string(e.Kind)).
		Int64("user_id", c.UserID()).
		Msg(e.Message)

	r.hub.EmitToClient(c, websocket.EventError, ErrorPayload{Message: e.Message, Event: event})
}
