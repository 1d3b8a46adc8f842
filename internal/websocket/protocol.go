// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package websocket

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Inbound events (client -> server).
const (
	EventSendMessage       = "send_message"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventMarkRead          = "mark_read"
	EventReadNotifications = "read_notifications"
	EventPing              = "ping"
)

// Outbound events (server -> client).
const (
	EventNewMessage              = "new_message"
	EventMessagesRead            = "messages_read"
	EventTypingStatus            = "typing_status"
	EventNewNotification         = "new_notification"
	EventJoinedConversation      = "joined_conversation"
	EventLeftConversation        = "left_conversation"
	EventNotificationsMarkedRead = "notifications_marked_read"
	EventError                   = "error"
	EventPong                    = "pong"

	EventFriendRequest         = "friend_request"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventFriendRequestRejected = "friend_request_rejected"
	EventFriendBlocked         = "friend_blocked"
	EventFriendRemoved         = "friend_removed"
)

// Message is one framed event on the wire:
//
//	{"event": "new_message", "data": {...}}
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// InboundMessage is a client frame with its payload left undecoded so each
// handler can decode into its own type.
type InboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// ParseInbound decodes a client frame.
func ParseInbound(frame []byte) (InboundMessage, error) {
	var in InboundMessage
	if err := json.Unmarshal(frame, &in); err != nil {
		return InboundMessage{}, fmt.Errorf("malformed frame: %w", err)
	}
	if in.Event == "" {
		return InboundMessage{}, errors.New("malformed frame: missing event")
	}
	return in, nil
}

// RoomID names a multicast group.
type RoomID string

const (
	personalPrefix     = "user:"
	conversationPrefix = "conversation:"
)

// PersonalRoom returns the room every connection of userID joins on connect.
func PersonalRoom(userID int64) RoomID {
	return RoomID(personalPrefix + strconv.FormatInt(userID, 10))
}

// ConversationRoom returns the room for a conversation.
func ConversationRoom(conversationID int64) RoomID {
	return RoomID(conversationPrefix + strconv.FormatInt(conversationID, 10))
}

// IsPersonal reports whether r is a personal room.
func (r RoomID) IsPersonal() bool {
	return strings.HasPrefix(string(r), personalPrefix)
}

// ParseRoom validates a room name of the form user:<id> or conversation:<id>
// and returns it in canonical form.
func ParseRoom(s string) (RoomID, error) {
	prefix := ""
	switch {
	case strings.HasPrefix(s, personalPrefix):
		prefix = personalPrefix
	case strings.HasPrefix(s, conversationPrefix):
		prefix = conversationPrefix
	default:
		return "", fmt.Errorf("unknown room kind %q", s)
	}
	id, err := strconv.ParseInt(s[len(prefix):], 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("invalid room id in %q", s)
	}
	return RoomID(prefix + strconv.FormatInt(id, 10)), nil
}
