// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

// Package realtime routes inbound socket events to their handlers, gates
// conversation rooms on participant checks, and produces notifications for
// write-path collaborators.
//
// Handlers always persist before they broadcast. Errors never leave a
// handler: the Router converts them to an error event for the originating
// connection only.
package realtime

import (
	"fmt"

	"github.com/tomtom215/townsquare/internal/websocket"
)

// Service bundles the realtime components built over one hub and store.
type Service struct {
	Router   *Router
	Handlers *Handlers
	Producer *Producer
	Gateway  *Gateway
}

// New wires the realtime components.
func New(hub *websocket.Hub, store Store, opts HandlerOptions) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("realtime service requires a store")
	}
	producer := NewProducer(store, hub)
	handlers := NewHandlers(hub, store, producer, opts)
	router, err := NewRouter(hub, handlers.Routes())
	if err != nil {
		return nil, fmt.Errorf("build event router: %w", err)
	}
	return &Service{
		Router:   router,
		Handlers: handlers,
		Producer: producer,
		Gateway:  NewGateway(hub, producer),
	}, nil
}
