// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

// Package presence mirrors the hub's presence registry into Redis so
// services outside this process can ask whether a user is online.
//
// The hash <prefix>:presence maps user id to live connection count. Each
// change is also published on <prefix>:presence:changes. The hub remains
// the source of truth; the mirror is rebuilt from it on every start.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/townsquare/internal/config"
	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/websocket"
)

const writeTimeout = 3 * time.Second

// Change is published for every presence transition.
type Change struct {
	UserID      int64 `json:"userId"`
	Online      bool  `json:"online"`
	Connections int   `json:"connections"`
}

// Snapshotter reports current connection counts. *websocket.Hub
// implements it.
type Snapshotter interface {
	PresenceSnapshot() map[int64]int
	ConnectionCount(userID int64) int
}

// Mirror writes presence changes to Redis. It implements
// websocket.Observer; hub callbacks only mark the user dirty and never touch
// the network.
//
// Observer calls for one user can arrive out of order when that user's
// devices connect and disconnect concurrently, so with a source the written
// count is read from the source when the batch is taken. The reported count
// is used only when the mirror has no source.
type Mirror struct {
	client  redis.UniversalClient
	hashKey string
	channel string
	source  Snapshotter

	mu      sync.Mutex
	pending map[int64]int
	wake    chan struct{}
}

// NewClient creates a Redis client from config.
func NewClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewMirror creates a Mirror. source may be nil, in which case Run starts
// from an empty hash.
func NewMirror(client redis.UniversalClient, keyPrefix string, source Snapshotter) *Mirror {
	base := "presence"
	if keyPrefix != "" {
		base = keyPrefix + ":presence"
	}
	return &Mirror{
		client:  client,
		hashKey: base,
		channel: base + ":changes",
		source:  source,
		pending: make(map[int64]int),
		wake:    make(chan struct{}, 1),
	}
}

// HashKey returns the Redis hash holding connection counts.
func (m *Mirror) HashKey() string { return m.hashKey }

// Channel returns the pub/sub channel carrying Change messages.
func (m *Mirror) Channel() string { return m.channel }

// ClientRegistered implements websocket.Observer.
func (m *Mirror) ClientRegistered(c *websocket.Client, userConnections int) {
	m.record(c.UserID(), userConnections)
}

// ClientUnregistered implements websocket.Observer.
func (m *Mirror) ClientUnregistered(c *websocket.Client, userConnections int) {
	m.record(c.UserID(), userConnections)
}

// record marks userID dirty; bursts of connects and disconnects collapse
// into one write.
func (m *Mirror) record(userID int64, connections int) {
	m.mu.Lock()
	m.pending[userID] = connections
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// takePending swaps out the dirty set and resolves each user's count
// against the source.
func (m *Mirror) takePending() map[int64]int {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return nil
	}
	batch := m.pending
	m.pending = make(map[int64]int, len(batch))
	m.mu.Unlock()

	if m.source != nil {
		for userID := range batch {
			batch[userID] = m.source.ConnectionCount(userID)
		}
	}
	return batch
}

// Run rebuilds the hash from the hub and then applies changes until ctx is
// done. On exit the hash is removed, since this process no longer holds
// any connections.
func (m *Mirror) Run(ctx context.Context) error {
	if err := m.reset(ctx); err != nil {
		return err
	}
	defer m.clear()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.wake:
			batch := m.takePending()
			if len(batch) == 0 {
				continue
			}
			if err := m.flush(ctx, batch); err != nil {
				logging.Warn().Err(err).Int("users", len(batch)).Msg("presence mirror write failed")
				m.requeue(batch)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// requeue puts a failed batch back without overwriting newer counts.
func (m *Mirror) requeue(batch map[int64]int) {
	m.mu.Lock()
	for userID, n := range batch {
		if _, newer := m.pending[userID]; !newer {
			m.pending[userID] = n
		}
	}
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mirror) reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	var snapshot map[int64]int
	if m.source != nil {
		snapshot = m.source.PresenceSnapshot()
	}

	_, err := m.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, m.hashKey)
		if len(snapshot) > 0 {
			values := make(map[string]any, len(snapshot))
			for userID, n := range snapshot {
				values[strconv.FormatInt(userID, 10)] = n
			}
			p.HSet(ctx, m.hashKey, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset presence hash: %w", err)
	}
	logging.Info().Str("key", m.hashKey).Int("users", len(snapshot)).Msg("presence mirror started")
	return nil
}

func (m *Mirror) flush(ctx context.Context, batch map[int64]int) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := m.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for userID, n := range batch {
			field := strconv.FormatInt(userID, 10)
			if n > 0 {
				p.HSet(ctx, m.hashKey, field, n)
			} else {
				p.HDel(ctx, m.hashKey, field)
			}
			change, err := json.Marshal(Change{UserID: userID, Online: n > 0, Connections: n})
			if err != nil {
				return err
			}
			p.Publish(ctx, m.channel, change)
		}
		return nil
	})
	return err
}

func (m *Mirror) clear() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := m.client.Del(ctx, m.hashKey).Err(); err != nil {
		logging.Warn().Err(err).Str("key", m.hashKey).Msg("failed to clear presence hash")
	}
}

// Connections reads a user's mirrored connection count.
func (m *Mirror) Connections(ctx context.Context, userID int64) (int, error) {
	n, err := m.client.HGet(ctx, m.hashKey, strconv.FormatInt(userID, 10)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read presence: %w", err)
	}
	return n, nil
}

// Ping checks the Redis connection, for readiness.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}
