// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package websocket

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/townsquare/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// clientIDCounter gives clients a monotonic id used for stable fan-out order.
var clientIDCounter atomic.Uint64

// Dispatcher handles one inbound frame from a client. Frames from the same
// client are dispatched sequentially, in arrival order.
type Dispatcher interface {
	HandleFrame(ctx context.Context, c *Client, frame []byte)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, c *Client, frame []byte)

// HandleFrame calls f.
func (f DispatcherFunc) HandleFrame(ctx context.Context, c *Client, frame []byte) {
	f(ctx, c, frame)
}

// Client is one authenticated live connection.
type Client struct {
	id       uint64
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	userID   int64
	username string
	limiter  *rate.Limiter

	// Guarded by hub.mu.
	rooms        map[RoomID]struct{}
	registered   bool
	unregistered bool
}

// NewClient creates a client for an authenticated user. conn may be nil for
// clients that are only driven through the hub, as in tests.
func NewClient(hub *Hub, conn *websocket.Conn, userID int64, username string) *Client {
	cfg := hub.clientCfg
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultClientConfig().SendBuffer
	}
	var limiter *rate.Limiter
	if cfg.EventRate > 0 {
		limiter = rate.NewLimiter(cfg.EventRate, cfg.EventBurst)
	}
	return &Client{
		id:       clientIDCounter.Add(1),
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, cfg.SendBuffer),
		userID:   userID,
		username: username,
		limiter:  limiter,
		rooms:    make(map[RoomID]struct{}),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// UserID returns the authenticated user id.
func (c *Client) UserID() int64 {
	return c.userID
}

// Username returns the authenticated username, if the token carried one.
func (c *Client) Username() string {
	return c.username
}

// Hub returns the hub the client belongs to.
func (c *Client) Hub() *Hub {
	return c.hub
}

// Allow reports whether the client may send another event now.
func (c *Client) Allow() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// Send returns the client's outbound frame buffer. It is closed when the
// client is unregistered.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// readPump reads frames and hands them to d until the connection fails.
func (c *Client) readPump(ctx context.Context, d Dispatcher) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close() // best-effort cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Int64("user_id", c.userID).Msg("unexpected websocket close error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		d.HandleFrame(logging.ContextWithNewCorrelationID(ctx), c, frame)
	}
}

// writePump writes queued frames and keepalive pings to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.Unregister(c)
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// Unregistered by the hub.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.Debug().Err(err).Int64("user_id", c.userID).Msg("failed to write websocket frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start runs the connection's pumps. ctx scopes the handlers invoked for
// this connection's frames and is canceled when the read side ends.
func (c *Client) Start(ctx context.Context, d Dispatcher) {
	ctx, cancel := context.WithCancel(ctx)
	go c.writePump()
	go func() {
		defer cancel()
		c.readPump(ctx, d)
	}()
}
