// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package realtime

import (
	"context"

	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/websocket"
)

// Membership gates conversation rooms on a participant check against the
// store. The check runs on every join; nothing is cached.
type Membership struct {
	hub          *websocket.Hub
	participants ParticipantChecker
}

// NewMembership creates a Membership.
func NewMembership(hub *websocket.Hub, participants ParticipantChecker) *Membership {
	return &Membership{hub: hub, participants: participants}
}

// JoinConversation adds c to the conversation room if its user is an active
// participant, and acknowledges with joined_conversation.
func (m *Membership) JoinConversation(ctx context.Context, c *websocket.Client, conversationID int64) error {
	ok, err := m.participants.IsActiveParticipant(ctx, conversationID, c.UserID())
	if err != nil {
		return storeError(err, "Failed to join conversation")
	}
	if !ok {
		return NewError(KindAuthorization, "Not authorized to join conversation", nil)
	}

	if !m.hub.Join(c, websocket.ConversationRoom(conversationID)) {
		// Disconnected while the check was in flight.
		return nil
	}
	logging.Ctx(ctx).Debug().
		Int64("user_id", c.UserID()).
		Int64("conversation_id", conversationID).
		Msg("joined conversation room")

	m.hub.EmitToClient(c, websocket.EventJoinedConversation, ConversationPayload{ConversationID: conversationID})
	return nil
}

// LeaveConversation removes c from the conversation room and acknowledges
// with left_conversation. No authorization check is made.
func (m *Membership) LeaveConversation(c *websocket.Client, conversationID int64) {
	m.hub.Leave(c, websocket.ConversationRoom(conversationID))
	m.hub.EmitToClient(c, websocket.EventLeftConversation, ConversationPayload{ConversationID: conversationID})
}
