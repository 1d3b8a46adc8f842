// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package realtime

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/models"
	"github.com/tomtom215/townsquare/internal/websocket"
)

// HandlerOptions tunes the inbound handlers.
type HandlerOptions struct {
	// MaxMessageLength caps content in runes; zero disables the cap.
	MaxMessageLength int
	// NotifyOnMessage stores a new_message notification for every other
	// participant after a socket send.
	NotifyOnMessage bool
}

// Handlers implements the inbound events. Every handler validates, then
// persists, then broadcasts.
type Handlers struct {
	hub        *websocket.Hub
	store      Store
	membership *Membership
	producer   *Producer
	opts       HandlerOptions
}

// NewHandlers creates the inbound handlers.
func NewHandlers(hub *websocket.Hub, store Store, producer *Producer, opts HandlerOptions) *Handlers {
	return &Handlers{
		hub:        hub,
		store:      store,
		membership: NewMembership(hub, store),
		producer:   producer,
		opts:       opts,
	}
}

// Routes returns the dispatch table for every inbound event.
func (h *Handlers) Routes() Routes {
	return Routes{
		websocket.EventSendMessage:       Typed(h.SendMessage),
		websocket.EventJoinConversation:  Typed(h.JoinConversation),
		websocket.EventLeaveConversation: Typed(h.LeaveConversation),
		websocket.EventTypingStart:       Typed(h.typing(true)),
		websocket.EventTypingStop:        Typed(h.typing(false)),
		websocket.EventMarkRead:          Typed(h.MarkRead),
		websocket.EventReadNotifications: Typed(h.ReadNotifications),
		websocket.EventPing:              Typed(h.Ping),
	}
}

// SendMessage persists a message and fans it out to every active
// participant's personal room, sender included.
func (h *Handlers) SendMessage(ctx context.Context, c *websocket.Client, p *SendMessagePayload) error {
	if h.opts.MaxMessageLength > 0 && utf8.RuneCountInString(p.Content) > h.opts.MaxMessageLength {
		return NewError(KindValidation, fmt.Sprintf("content must be at most %d characters", h.opts.MaxMessageLength), nil)
	}

	msgType := p.MessageType
	if msgType == "" {
		msgType = p.Type
	}
	if msgType == "" {
		msgType = models.MessageTypeText
	}

	msg, err := h.store.CreateMessage(ctx, models.NewMessage{
		ConversationID: int64(p.ConversationID),
		SenderID:       c.UserID(),
		Body:           p.Content,
		MessageType:    msgType,
		MediaURL:       p.MediaURL,
	})
	if err != nil {
		return storeError(err, "Failed to send message")
	}

	participants, err := h.store.ListActiveParticipants(ctx, msg.ConversationID)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Int64("message_id", msg.ID).Msg("message persisted but participant lookup failed")
		return storeError(err, "Message saved but could not be delivered")
	}

	delivered := 0
	for _, userID := range participants {
		delivered += h.hub.EmitToUser(userID, websocket.EventNewMessage, msg)
	}
	logging.Ctx(ctx).Debug().
		Int64("message_id", msg.ID).
		Int64("conversation_id", msg.ConversationID).
		Int("participants", len(participants)).
		Int("delivered", delivered).
		Msg("message sent")

	if h.opts.NotifyOnMessage && h.producer != nil {
		// Failures are logged by the producer and never fail the send.
		_, _ = h.producer.NotifyNewMessage(ctx, msg.SenderID, msg.ID, participants)
	}
	return nil
}

// JoinConversation joins the conversation room after a participant check.
func (h *Handlers) JoinConversation(ctx context.Context, c *websocket.Client, p *ConversationRef) error {
	return h.membership.JoinConversation(ctx, c, int64(p.ConversationID))
}

// LeaveConversation leaves the conversation room.
func (h *Handlers) LeaveConversation(_ context.Context, c *websocket.Client, p *ConversationRef) error {
	h.membership.LeaveConversation(c, int64(p.ConversationID))
	return nil
}

// typing broadcasts typing_status to the conversation room, skipping the
// sending connection. The sender need not have joined the room on this
// connection, but must be a participant: any of the user's connections in
// the room proves that, otherwise the store is asked. Typing from a
// non-participant is dropped.
func (h *Handlers) typing(isTyping bool) func(context.Context, *websocket.Client, *ConversationRef) error {
	return func(ctx context.Context, c *websocket.Client, p *ConversationRef) error {
		conversationID := int64(p.ConversationID)
		room := websocket.ConversationRoom(conversationID)
		if !h.hub.UserInRoom(c.UserID(), room) {
			ok, err := h.store.IsActiveParticipant(ctx, conversationID, c.UserID())
			if err != nil {
				return storeError(err, "Failed to send typing status")
			}
			if !ok {
				return nil
			}
		}
		h.hub.EmitToRoom(room, websocket.EventTypingStatus, TypingPayload{
			UserID:         c.UserID(),
			ConversationID: conversationID,
			IsTyping:       isTyping,
		}, c)
		return nil
	}
}

// MarkRead records read receipts for the conversation and broadcasts
// messages_read to the conversation room. Repeating it is harmless.
func (h *Handlers) MarkRead(ctx context.Context, c *websocket.Client, p *ConversationRef) error {
	conversationID := int64(p.ConversationID)
	marked, err := h.store.MarkConversationRead(ctx, conversationID, c.UserID())
	if err != nil {
		return storeError(err, "Failed to mark messages as read")
	}
	logging.Ctx(ctx).Debug().
		Int64("conversation_id", conversationID).
		Int64("marked", marked).
		Msg("conversation marked read")

	h.hub.EmitToRoom(websocket.ConversationRoom(conversationID), websocket.EventMessagesRead, MessagesReadPayload{
		ConversationID: conversationID,
		UserID:         c.UserID(),
	}, nil)
	return nil
}

// ReadNotifications marks the caller's notifications read and confirms the
// ids that belonged to the caller. Foreign ids are dropped silently.
func (h *Handlers) ReadNotifications(ctx context.Context, c *websocket.Client, p *ReadNotificationsPayload) error {
	owned, err := h.store.MarkNotificationsRead(ctx, c.UserID(), toInt64s(p.NotificationIDs))
	if err != nil {
		return storeError(err, "Failed to mark notifications as read")
	}
	if owned == nil {
		owned = []int64{}
	}
	h.hub.EmitToClient(c, websocket.EventNotificationsMarkedRead, NotificationsReadPayload{NotificationIDs: owned})
	return nil
}

// Ping answers with pong.
func (h *Handlers) Ping(_ context.Context, c *websocket.Client, _ *PingPayload) error {
	h.hub.EmitToClient(c, websocket.EventPong, PongPayload{Timestamp: time.Now().UnixMilli()})
	return nil
}
