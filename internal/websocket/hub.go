// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

// Package websocket owns live connections: the presence registry (user id to
// the set of that user's connections), room membership, and fan-out of
// events to users and rooms.
//
// All registry and room mutation happens under Hub.mu. Sends to a
// connection are non-blocking; a connection whose buffer is full is closed
// and unregistered rather than stalling the sender.
package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// ErrHubClosed is returned by Register after the hub has shut down.
var ErrHubClosed = errors.New("websocket hub is closed")

// Observer is told about registry changes. Calls happen outside the hub
// lock, on the goroutine that caused the change, and must not block.
//
// userConnections is the count right after the change. Calls for the same
// user from concurrent connects and disconnects are not ordered; an observer
// that needs the current count reads it back with ConnectionCount.
type Observer interface {
	ClientRegistered(c *Client, userConnections int)
	ClientUnregistered(c *Client, userConnections int)
}

// ClientConfig holds per-connection limits.
type ClientConfig struct {
	SendBuffer int
	EventRate  rate.Limit
	EventBurst int
}

// DefaultClientConfig returns the default per-connection limits.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{SendBuffer: 256, EventRate: 20, EventBurst: 40}
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithClientConfig sets the limits applied to clients created by NewClient.
func WithClientConfig(cfg ClientConfig) HubOption {
	return func(h *Hub) {
		h.clientCfg = cfg
	}
}

// WithObserver adds a registry observer.
func WithObserver(o Observer) HubOption {
	return func(h *Hub) {
		h.observers = append(h.observers, o)
	}
}

// AddObserver adds a registry observer after construction, for observers
// that need the hub themselves. Only changes after the call are reported.
func (h *Hub) AddObserver(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, o)
}

// Hub is the process-wide presence registry and room table.
//
// A Hub maps each user id to the set of that user's live connections and
// each room to its member connections. Every connection is in its personal
// room (user:<id>) from Register until Unregister; conversation rooms are
// joined explicitly after a participant check made by the caller.
//
// Lifecycle:
//
//  1. NewHub creates an open hub; Register works before RunWithContext
//  2. RunWithContext runs under the realtime supervisor layer
//  3. When its context ends every connection is closed and Register
//     returns ErrHubClosed until RunWithContext is started again
//
// Example usage:
//
//	hub := websocket.NewHub(websocket.WithObserver(tracker))
//	tree.AddRealtimeService(services.NewHubService(hub))
//
// All methods are safe for concurrent use.
type Hub struct {
	mu       sync.RWMutex
	presence map[int64]map[*Client]struct{}
	rooms    map[RoomID]map[*Client]struct{}
	conns    int
	closed   bool

	clientCfg ClientConfig
	observers []Observer
}

// NewHub creates an open Hub. Options apply in order; WithObserver may be
// given more than once.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		presence:  make(map[int64]map[*Client]struct{}),
		rooms:     make(map[RoomID]map[*Client]struct{}),
		clientCfg: DefaultClientConfig(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds c to its user's presence entry and to the user's personal
// room. Registering the same client twice has no further effect.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	if c.registered || c.unregistered {
		h.mu.Unlock()
		return nil
	}

	set, ok := h.presence[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.presence[c.userID] = set
	}
	set[c] = struct{}{}
	c.registered = true
	h.conns++
	h.joinLocked(c, PersonalRoom(c.userID))

	userConns := len(set)
	conns, users := h.conns, len(h.presence)
	observers := h.observers
	h.mu.Unlock()

	metrics.SetPresence(conns, users)
	logging.Debug().
		Uint64("client_id", c.id).
		Int64("user_id", c.userID).
		Int("user_connections", userConns).
		Int("total_clients", conns).
		Msg("websocket client connected")

	for _, o := range observers {
		o.ClientRegistered(c, userConns)
	}
	return nil
}

// Unregister removes c from presence and from every room it joined, and
// closes its send buffer. The user's presence entry is deleted when its last
// connection goes. Only the first call for a client has any effect; it
// reports whether this call was that one.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	if !c.registered || c.unregistered {
		h.mu.Unlock()
		return false
	}
	c.unregistered = true

	for room := range c.rooms {
		h.leaveLocked(c, room)
	}

	userConns := 0
	if set, ok := h.presence[c.userID]; ok {
		delete(set, c)
		userConns = len(set)
		if userConns == 0 {
			delete(h.presence, c.userID)
		}
	}
	h.conns--
	close(c.send)

	conns, users := h.conns, len(h.presence)
	observers := h.observers
	h.mu.Unlock()

	metrics.SetPresence(conns, users)
	logging.Debug().
		Uint64("client_id", c.id).
		Int64("user_id", c.userID).
		Int("user_connections", userConns).
		Int("total_clients", conns).
		Msg("websocket client disconnected")

	for _, o := range observers {
		o.ClientUnregistered(c, userConns)
	}
	return true
}

// IsOnline reports whether userID has at least one live connection.
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.presence[userID]) > 0
}

// ConnectionsFor returns the live connections of userID ordered by client id.
func (h *Hub) ConnectionsFor(userID int64) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedClients(h.presence[userID])
}

// ConnectionCount returns the number of live connections of userID.
func (h *Hub) ConnectionCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.presence[userID])
}

// GetClientCount returns the number of live connections.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns
}

// OnlineUserCount returns the number of users with a live connection.
func (h *Hub) OnlineUserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.presence)
}

// PresenceSnapshot returns the connection count of every online user.
func (h *Hub) PresenceSnapshot() map[int64]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[int64]int, len(h.presence))
	for userID, conns := range h.presence {
		out[userID] = len(conns)
	}
	return out
}

// Join adds a registered client to room. It reports false if the client is
// not (or no longer) registered.
func (h *Hub) Join(c *Client, room RoomID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !c.registered || c.unregistered {
		return false
	}
	h.joinLocked(c, room)
	return true
}

// Leave removes c from room. Leaving a room the client is not in is a no-op.
// The personal room cannot be left while connected.
func (h *Hub) Leave(c *Client, room RoomID) {
	if room == PersonalRoom(c.userID) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

// InRoom reports whether c is currently joined to room.
func (h *Hub) InRoom(c *Client, room RoomID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// UserInRoom reports whether any live connection of userID is joined to room.
func (h *Hub) UserInRoom(userID int64, room RoomID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.presence[userID] {
		if _, ok := c.rooms[room]; ok {
			return true
		}
	}
	return false
}

// RoomSize returns the number of connections joined to room.
func (h *Hub) RoomSize(room RoomID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) joinLocked(c *Client, room RoomID) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room RoomID) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// EmitToUser pushes event to every live connection of userID and returns
// the number of connections it was queued for. An offline user is a no-op.
func (h *Hub) EmitToUser(userID int64, event string, payload any) int {
	frame, ok := encode(event, payload)
	if !ok {
		return 0
	}

	h.mu.RLock()
	sent, slow := h.sendLocked(h.presence[userID], frame, nil)
	h.mu.RUnlock()

	h.dropSlow(slow)
	metrics.RecordDeliveries("user", sent)
	return sent
}

// EmitToRoom pushes event to every connection joined to room except
// exclude, which may be nil.
func (h *Hub) EmitToRoom(room RoomID, event string, payload any, exclude *Client) int {
	frame, ok := encode(event, payload)
	if !ok {
		return 0
	}

	h.mu.RLock()
	sent, slow := h.sendLocked(h.rooms[room], frame, exclude)
	h.mu.RUnlock()

	h.dropSlow(slow)
	metrics.RecordDeliveries("room", sent)
	return sent
}

// EmitToClient pushes event to a single connection.
func (h *Hub) EmitToClient(c *Client, event string, payload any) bool {
	frame, ok := encode(event, payload)
	if !ok {
		return false
	}

	h.mu.RLock()
	if !c.registered || c.unregistered {
		h.mu.RUnlock()
		return false
	}
	queued := trySend(c, frame)
	h.mu.RUnlock()

	if !queued {
		h.dropSlow([]*Client{c})
		return false
	}
	metrics.RecordDeliveries("client", 1)
	return true
}

// sendLocked queues frame on every member except exclude. Must be called
// with at least the read lock held, which keeps send channels open.
func (h *Hub) sendLocked(members map[*Client]struct{}, frame []byte, exclude *Client) (sent int, slow []*Client) {
	for _, c := range sortedClients(members) {
		if c == exclude {
			continue
		}
		if trySend(c, frame) {
			sent++
		} else {
			slow = append(slow, c)
		}
	}
	return sent, slow
}

func trySend(c *Client, frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// dropSlow disconnects clients whose send buffer was full.
func (h *Hub) dropSlow(slow []*Client) {
	for _, c := range slow {
		if h.Unregister(c) {
			metrics.SlowConsumersDropped.Inc()
			logging.Warn().
				Uint64("client_id", c.id).
				Int64("user_id", c.userID).
				Msg("send buffer full, dropping websocket client")
		}
	}
}

func encode(event string, payload any) ([]byte, bool) {
	frame, err := MarshalMessage(Message{Event: event, Data: payload})
	if err != nil {
		logging.Error().Err(err).Str("event", event).Msg("failed to encode websocket event")
		return nil, false
	}
	return frame, true
}

// sortedClients returns clients ordered by id so fan-out order is stable.
func sortedClients(set map[*Client]struct{}) []*Client {
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// RunWithContext blocks until ctx is done, then closes every connection and
// refuses further registrations.
//
// It is meant to run under a supervisor. A restart reopens the hub, so
// clients can register again; connections closed by the previous run stay
// closed and must reconnect. The returned error is always ctx.Err().
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.mu.Lock()
	h.closed = false
	h.mu.Unlock()

	<-ctx.Done()
	h.logGracefulShutdown(ctx)
	return ctx.Err()
}

// logGracefulShutdown closes all clients and logs the shutdown. ctx.Err()
// is not logged as an error because cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	closed := h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", closed).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients unregisters every client in id order.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	h.closed = true
	all := make(map[*Client]struct{}, h.conns)
	for _, set := range h.presence {
		for c := range set {
			all[c] = struct{}{}
		}
	}
	h.mu.Unlock()

	closed := 0
	for _, c := range sortedClients(all) {
		if h.Unregister(c) {
			closed++
		}
	}
	return closed
}
