// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package realtime

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// ID is an int64 identifier that also decodes from a numeric JSON string,
// since browser clients frequently send ids as strings.
type ID int64

// UnmarshalJSON accepts 42 or "42".
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*id = ID(v)
	return nil
}

// ConversationRef names a conversation. Clients send it as
// {"conversationId": 42}, or as a bare 42 or "42".
type ConversationRef struct {
	ConversationID ID `json:"conversationId" validate:"required,gt=0"`
}

// UnmarshalJSON accepts the object form and the bare forms.
func (r *ConversationRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			ConversationID ID `json:"conversationId"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		r.ConversationID = obj.ConversationID
		return nil
	}
	return r.ConversationID.UnmarshalJSON(b)
}

// SendMessagePayload is the send_message body. "type" is accepted as an
// alias of messageType.
type SendMessagePayload struct {
	ConversationID ID      `json:"conversationId" validate:"required,gt=0"`
	Content        string  `json:"content" validate:"required_without=MediaURL"`
	MessageType    string  `json:"messageType" validate:"omitempty,oneof=text image video audio file"`
	Type           string  `json:"type" validate:"omitempty,oneof=text image video audio file"`
	MediaURL       *string `json:"mediaUrl,omitempty" validate:"omitempty,url,max=2048"`
}

// ReadNotificationsPayload is the read_notifications body.
type ReadNotificationsPayload struct {
	NotificationIDs []ID `json:"notificationIds" validate:"required,min=1,max=500,dive,gt=0"`
}

// UnmarshalJSON accepts {"notificationIds": [...]} or a bare array.
func (p *ReadNotificationsPayload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, &p.NotificationIDs)
	}
	var obj struct {
		NotificationIDs []ID `json:"notificationIds"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	p.NotificationIDs = obj.NotificationIDs
	return nil
}

// PingPayload is the ping body; any content is ignored.
type PingPayload struct{}

// Outbound payloads.

// ErrorPayload is sent with the error event.
type ErrorPayload struct {
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// ConversationPayload is sent with joined_conversation and left_conversation.
type ConversationPayload struct {
	ConversationID int64 `json:"conversationId"`
}

// MessagesReadPayload is the read receipt broadcast to a conversation room.
type MessagesReadPayload struct {
	ConversationID int64 `json:"conversationId"`
	UserID         int64 `json:"userId"`
}

// TypingPayload is the typing_status broadcast.
type TypingPayload struct {
	UserID         int64 `json:"userId"`
	ConversationID int64 `json:"conversationId"`
	IsTyping       bool  `json:"isTyping"`
}

// NotificationsReadPayload confirms read_notifications to the caller.
type NotificationsReadPayload struct {
	NotificationIDs []int64 `json:"notificationIds"`
}

// PongPayload answers ping.
type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

func toInt64s(ids []ID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
