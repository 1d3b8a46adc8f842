// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package realtime

import (
	"context"
	"time"

	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/metrics"
	"github.com/tomtom215/townsquare/internal/websocket"
)

const (
	activityQueueSize = 1024
	activityTimeout   = 5 * time.Second
)

// LastActiveToucher updates a user's last-active timestamp.
type LastActiveToucher interface {
	TouchLastActive(ctx context.Context, userID int64) error
}

// ActivityTracker updates users.last_active_at on every connect and
// disconnect. It observes the hub and applies updates from Run, so hub
// callers never wait on the store.
type ActivityTracker struct {
	store LastActiveToucher
	queue chan int64
}

// NewActivityTracker creates an ActivityTracker.
func NewActivityTracker(store LastActiveToucher) *ActivityTracker {
	return &ActivityTracker{
		store: store,
		queue: make(chan int64, activityQueueSize),
	}
}

// ClientRegistered implements websocket.Observer.
func (t *ActivityTracker) ClientRegistered(c *websocket.Client, _ int) {
	t.enqueue(c.UserID())
}

// ClientUnregistered implements websocket.Observer.
func (t *ActivityTracker) ClientUnregistered(c *websocket.Client, _ int) {
	t.enqueue(c.UserID())
}

func (t *ActivityTracker) enqueue(userID int64) {
	select {
	case t.queue <- userID:
	default:
		metrics.ObserverQueueDropped.WithLabelValues("activity").Inc()
	}
}

// Run applies queued updates until ctx is done, then drains what is left
// with a short deadline.
func (t *ActivityTracker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			t.drain()
			return ctx.Err()
		case userID := <-t.queue:
			t.touch(ctx, userID)
		}
	}
}

func (t *ActivityTracker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), activityTimeout)
	defer cancel()
	for {
		select {
		case userID := <-t.queue:
			t.touch(ctx, userID)
		default:
			return
		}
	}
}

func (t *ActivityTracker) touch(ctx context.Context, userID int64) {
	ctx, cancel := context.WithTimeout(ctx, activityTimeout)
	defer cancel()
	if err := t.store.TouchLastActive(ctx, userID); err != nil {
		logging.Warn().Err(err).Int64("user_id", userID).Msg("failed to update last active timestamp")
	}
}
