// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package realtime

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/townsquare/internal/models"
	"github.com/tomtom215/townsquare/internal/websocket"
)

func TestSendMessage_ScenarioOfflineParticipant(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	h.store.addParticipant(42, 1)
	h.store.addParticipant(42, 2)

	a := h.connect(t, 1)
	h.send(a, websocket.EventJoinConversation, map[string]int{"conversationId": 42})
	only(t, a, websocket.EventJoinedConversation)

	h.send(a, websocket.EventSendMessage, map[string]any{"conversationId": 42, "content": "hi"})

	if got := h.store.messageCount(); got != 1 {
		t.Fatalf("messages persisted = %d, want 1", got)
	}
	f := only(t, a, websocket.EventNewMessage)
	var msg models.Message
	if err := json.Unmarshal(f.Data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.SenderID != 1 || msg.Message != "hi" || msg.MessageType != models.MessageTypeText {
		t.Errorf("new_message = %+v", msg)
	}
}

func TestSendMessage_DeliversToPersonalRooms(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	h.store.addParticipant(7, 1)
	h.store.addParticipant(7, 2)

	sender := h.connect(t, 1)
	tab1 := h.connect(t, 2)
	tab2 := h.connect(t, 2)
	outsider := h.connect(t, 3)

	// Recipient has not joined the conversation room on either tab.
	h.send(sender, websocket.EventSendMessage, map[string]any{"conversationId": "7", "content": "yo", "type": "image", "mediaUrl": "https://cdn.example.com/a.png"})

	only(t, sender, websocket.EventNewMessage)
	only(t, tab1, websocket.EventNewMessage)
	f := only(t, tab2, websocket.EventNewMessage)
	if len(drain(t, outsider)) != 0 {
		t.Error("non-participant received the message")
	}

	var msg models.Message
	if err := json.Unmarshal(f.Data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.MessageType != "image" || msg.MediaURL == nil {
		t.Errorf("message type/media not carried: %+v", msg)
	}
}

func TestSendMessage_Failures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(s *memStore)
		data       any
		wantMsg    string
		wantStored int
	}{
		{
			name:    "not a participant",
			setup:   func(s *memStore) { s.addParticipant(42, 2) },
			data:    map[string]any{"conversationId": 42, "content": "hi"},
			wantMsg: "Not a participant in this conversation",
		},
		{
			name:    "conversation does not exist",
			setup:   func(*memStore) {},
			data:    map[string]any{"conversationId": 404, "content": "hi"},
			wantMsg: "Conversation not found",
		},
		{
			name: "store down",
			setup: func(s *memStore) {
				s.addParticipant(42, 1)
				s.failCreateMessage = true
			},
			data:    map[string]any{"conversationId": 42, "content": "hi"},
			wantMsg: "Failed to send message",
		},
		{
			name:    "missing conversation",
			setup:   func(*memStore) {},
			data:    map[string]any{"content": "hi"},
			wantMsg: "conversationId is required",
		},
		{
			name:    "empty content without media",
			setup:   func(s *memStore) { s.addParticipant(42, 1) },
			data:    map[string]any{"conversationId": 42},
			wantMsg: "content is required",
		},
		{
			name:    "too long",
			setup:   func(s *memStore) { s.addParticipant(42, 1) },
			data:    map[string]any{"conversationId": 42, "content": strings.Repeat("é", 11)},
			wantMsg: "content must be at most 10 characters",
		},
		{
			name:    "bad message type",
			setup:   func(s *memStore) { s.addParticipant(42, 1) },
			data:    map[string]any{"conversationId": 42, "content": "x", "messageType": "gif"},
			wantMsg: "messageType must be one of: text image video audio file",
		},
		{
			name: "participant lookup fails after commit",
			setup: func(s *memStore) {
				s.addParticipant(42, 1)
				s.failParticipants = true
			},
			data:       map[string]any{"conversationId": 42, "content": "hi"},
			wantMsg:    "Message saved but could not be delivered",
			wantStored: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, HandlerOptions{MaxMessageLength: 10})
			tt.setup(h.store)
			sender := h.connect(t, 1)
			peer := h.connect(t, 2)

			h.send(sender, websocket.EventSendMessage, tt.data)

			if got := errorMessage(t, only(t, sender, websocket.EventError)); got != tt.wantMsg {
				t.Errorf("error message = %q, want %q", got, tt.wantMsg)
			}
			if frames := drain(t, peer); len(frames) != 0 {
				t.Errorf("peer received %v, want nothing", frames)
			}
			if got := h.store.messageCount(); got != tt.wantStored {
				t.Errorf("messages stored = %d, want %d", got, tt.wantStored)
			}
		})
	}
}

func TestSendMessage_NotifiesOtherParticipants(t *testing.T) {
	h := newHarness(t, HandlerOptions{NotifyOnMessage: true})
	h.store.addParticipant(9, 1)
	h.store.addParticipant(9, 2)
	h.store.addParticipant(9, 3)
	h.store.failNotify[3] = true

	sender := h.connect(t, 1)
	peer := h.connect(t, 2)

	h.send(sender, websocket.EventSendMessage, map[string]any{"conversationId": 9, "content": "hello"})

	only(t, sender, websocket.EventNewMessage)
	frames := drain(t, peer)
	if len(frames) != 2 || frames[0].Event != websocket.EventNewMessage || frames[1].Event != websocket.EventNewNotification {
		t.Fatalf("peer frames = %v, want new_message then new_notification", frames)
	}
	// The failing recipient does not affect the send.
	if got := h.store.notificationCount(); got != 1 {
		t.Errorf("notifications stored = %d, want 1", got)
	}
}

func TestJoinConversation_RecheckedEveryAttempt(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	h.store.addParticipant(5, 1)
	c := h.connect(t, 1)

	h.send(c, websocket.EventJoinConversation, 5)
	f := only(t, c, websocket.EventJoinedConversation)
	var p ConversationPayload
	if err := json.Unmarshal(f.Data, &p); err != nil || p.ConversationID != 5 {
		t.Fatalf("joined_conversation = %s", f.Data)
	}
	if !h.hub.InRoom(c, websocket.ConversationRoom(5)) {
		t.Fatal("not in room after join")
	}

	h.send(c, websocket.EventLeaveConversation, "5")
	only(t, c, websocket.EventLeftConversation)

	h.store.removeParticipant(5, 1)
	h.send(c, websocket.EventJoinConversation, map[string]any{"conversationId": 5})
	if got := errorMessage(t, only(t, c, websocket.EventError)); got != "Not authorized to join conversation" {
		t.Errorf("error = %q", got)
	}
	if h.hub.InRoom(c, websocket.ConversationRoom(5)) {
		t.Error("joined after participant removal")
	}
}

func TestJoinConversation_StoreFailure(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	h.store.failCheck = true
	c := h.connect(t, 1)

	h.send(c, websocket.EventJoinConversation, 5)
	if got := errorMessage(t, only(t, c, websocket.EventError)); got != "Failed to join conversation" {
		t.Errorf("error = %q", got)
	}
}

func TestTyping_ExcludesSender(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	for _, id := range []int64{1, 2, 3} {
		h.store.addParticipant(8, id)
	}
	sender := h.connect(t, 1)
	senderOtherTab := h.connect(t, 1)
	peer := h.connect(t, 2)
	notJoined := h.connect(t, 3)
	for _, c := range []*websocket.Client{sender, senderOtherTab, peer} {
		h.send(c, websocket.EventJoinConversation, 8)
		drain(t, c)
	}

	tests := []struct {
		event string
		want  bool
	}{
		{websocket.EventTypingStart, true},
		{websocket.EventTypingStop, false},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			h.send(sender, tt.event, map[string]int{"conversationId": 8})

			if frames := drain(t, sender); len(frames) != 0 {
				t.Errorf("sender received its own typing event: %v", frames)
			}
			only(t, senderOtherTab, websocket.EventTypingStatus)
			f := only(t, peer, websocket.EventTypingStatus)
			var p TypingPayload
			if err := json.Unmarshal(f.Data, &p); err != nil {
				t.Fatal(err)
			}
			if p.UserID != 1 || p.ConversationID != 8 || p.IsTyping != tt.want {
				t.Errorf("typing_status = %+v", p)
			}
			if frames := drain(t, notJoined); len(frames) != 0 {
				t.Errorf("non-member received %v", frames)
			}
		})
	}
}

func TestTyping_IgnoredOutsideRoom(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	h.store.addParticipant(8, 2)
	stranger := h.connect(t, 1)
	peer := h.connect(t, 2)
	h.send(peer, websocket.EventJoinConversation, 8)
	drain(t, peer)

	h.send(stranger, websocket.EventTypingStart, 8)
	if frames := drain(t, peer); len(frames) != 0 {
		t.Errorf("typing from outside the room was delivered: %v", frames)
	}
	if frames := drain(t, stranger); len(frames) != 0 {
		t.Errorf("stranger got %v, want nothing", frames)
	}
}

func TestTyping_FromUnjoinedDevice(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	h.store.addParticipant(42, 1)
	h.store.addParticipant(42, 2)
	peer := h.connect(t, 2)
	h.send(peer, websocket.EventJoinConversation, 42)
	drain(t, peer)

	tests := []struct {
		name      string
		joinFirst bool
	}{
		{"other device joined", true},
		{"no device joined", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			joined := h.connect(t, 1)
			if tt.joinFirst {
				h.send(joined, websocket.EventJoinConversation, 42)
				drain(t, joined)
			}
			phone := h.connect(t, 1)
			t.Cleanup(func() {
				h.hub.Unregister(joined)
				h.hub.Unregister(phone)
			})

			h.send(phone, websocket.EventTypingStart, 42)

			f := only(t, peer, websocket.EventTypingStatus)
			var p TypingPayload
			if err := json.Unmarshal(f.Data, &p); err != nil {
				t.Fatal(err)
			}
			if p.UserID != 1 || p.ConversationID != 42 || !p.IsTyping {
				t.Errorf("typing_status = %+v", p)
			}
			if frames := drain(t, phone); len(frames) != 0 {
				t.Errorf("sending device received %v", frames)
			}
		})
	}
}

func TestTyping_StoreFailure(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	h.store.addParticipant(8, 2)
	peer := h.connect(t, 2)
	h.send(peer, websocket.EventJoinConversation, 8)
	drain(t, peer)

	h.store.failCheck = true
	c := h.connect(t, 1)
	h.send(c, websocket.EventTypingStart, 8)
	if got := errorMessage(t, only(t, c, websocket.EventError)); got != "Failed to send typing status" {
		t.Errorf("error = %q", got)
	}
	if frames := drain(t, peer); len(frames) != 0 {
		t.Errorf("peer received %v", frames)
	}
}

func TestMarkRead_Idempotent(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	h.store.addParticipant(4, 1)
	h.store.addParticipant(4, 2)
	reader := h.connect(t, 1)
	peer := h.connect(t, 2)
	h.send(peer, websocket.EventJoinConversation, 4)
	h.send(reader, websocket.EventJoinConversation, 4)
	drain(t, peer)
	drain(t, reader)

	var first, second frame
	h.send(reader, websocket.EventMarkRead, map[string]int{"conversationId": 4})
	first = only(t, peer, websocket.EventMessagesRead)
	only(t, reader, websocket.EventMessagesRead)

	h.send(reader, websocket.EventMarkRead, 4)
	second = only(t, peer, websocket.EventMessagesRead)
	only(t, reader, websocket.EventMessagesRead)

	if string(first.Data) != string(second.Data) {
		t.Errorf("broadcast differs: %s vs %s", first.Data, second.Data)
	}
	if string(first.Data) != `{"conversationId":4,"userId":1}` {
		t.Errorf("messages_read payload = %s", first.Data)
	}
}

func TestMarkRead_NotParticipant(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	c := h.connect(t, 1)
	h.send(c, websocket.EventMarkRead, 4)
	if got := errorMessage(t, only(t, c, websocket.EventError)); got != "Not a participant in this conversation" {
		t.Errorf("error = %q", got)
	}
}

func TestReadNotifications_OwnershipScoped(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	mine, err := h.svc.Producer.NotifyFollow(t.Context(), 9, 1)
	if err != nil {
		t.Fatal(err)
	}
	theirs, err := h.svc.Producer.NotifyFollow(t.Context(), 9, 2)
	if err != nil {
		t.Fatal(err)
	}

	c := h.connect(t, 1)
	h.send(c, websocket.EventReadNotifications, map[string]any{"notificationIds": []int64{mine.ID, theirs.ID}})

	f := only(t, c, websocket.EventNotificationsMarkedRead)
	var p NotificationsReadPayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		t.Fatal(err)
	}
	if len(p.NotificationIDs) != 1 || p.NotificationIDs[0] != mine.ID {
		t.Errorf("confirmed ids = %v, want [%d]", p.NotificationIDs, mine.ID)
	}

	// Bare array form, nothing owned.
	h.send(c, websocket.EventReadNotifications, []int64{theirs.ID})
	f = only(t, c, websocket.EventNotificationsMarkedRead)
	if string(f.Data) != `{"notificationIds":[]}` {
		t.Errorf("payload = %s", f.Data)
	}
}

func TestReadNotifications_Validation(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	c := h.connect(t, 1)

	h.send(c, websocket.EventReadNotifications, map[string]any{"notificationIds": []int64{}})
	if got := errorMessage(t, only(t, c, websocket.EventError)); got != "notificationIds must be at least 1 items" {
		t.Errorf("error = %q", got)
	}
}

func TestPing(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	c := h.connect(t, 1)
	h.send(c, websocket.EventPing, nil)
	only(t, c, websocket.EventPong)
}
