// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package realtime

import (
	"context"

	"github.com/tomtom215/townsquare/internal/models"
	"github.com/tomtom215/townsquare/internal/websocket"
)

// ParticipantChecker answers whether a user may join a conversation room.
type ParticipantChecker interface {
	IsActiveParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
}

// MessageStore persists conversation messages and read state.
type MessageStore interface {
	ParticipantChecker
	// CreateMessage returns models.ErrNotParticipant when the sender is not
	// an active participant; nothing is written in that case.
	CreateMessage(ctx context.Context, in models.NewMessage) (*models.Message, error)
	ListActiveParticipants(ctx context.Context, conversationID int64) ([]int64, error)
	MarkConversationRead(ctx context.Context, conversationID, userID int64) (int64, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, in models.NewNotification) (*models.Notification, error)
	// MarkNotificationsRead returns the subset of ids owned by userID.
	MarkNotificationsRead(ctx context.Context, userID int64, ids []int64) ([]int64, error)
}

// UserStore reads and touches user rows.
type UserStore interface {
	TouchLastActive(ctx context.Context, userID int64) error
	ListFollowers(ctx context.Context, userID int64) ([]int64, error)
}

// Store is everything the realtime layer needs from durable state.
type Store interface {
	MessageStore
	NotificationStore
	UserStore
}

// Emitter is the delivery surface used by collaborators. *websocket.Hub
// implements it.
type Emitter interface {
	EmitToUser(userID int64, event string, payload any) int
	EmitToRoom(room websocket.RoomID, event string, payload any, exclude *websocket.Client) int
}
