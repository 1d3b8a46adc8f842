// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package realtime

import (
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/townsquare/internal/websocket"
)

func TestGateway_EmitToUser(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	c := h.connect(t, 3)
	g := h.svc.Gateway

	n, err := g.EmitToUser(3, EmitRequest{Event: "post_liked", Data: json.RawMessage(`{"postId":1}`)})
	if err != nil || n != 1 {
		t.Fatalf("EmitToUser() = %d, %v", n, err)
	}
	f := only(t, c, "post_liked")
	if string(f.Data) != `{"postId":1}` {
		t.Errorf("data = %s", f.Data)
	}

	if n, err := g.EmitToUser(4, EmitRequest{Event: "post_liked"}); err != nil || n != 0 {
		t.Errorf("offline EmitToUser() = %d, %v; want 0, nil", n, err)
	}

	for _, bad := range []EmitRequest{{}, {Event: "Bad Event"}} {
		if _, err := g.EmitToUser(3, bad); KindOf(err) != KindValidation {
			t.Errorf("EmitToUser(%+v) kind = %q, want validation", bad, KindOf(err))
		}
	}
	if _, err := g.EmitToUser(0, EmitRequest{Event: "x"}); KindOf(err) != KindValidation {
		t.Error("EmitToUser(0) accepted")
	}
}

func TestGateway_EmitToRoom(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	h.store.addParticipant(42, 1)
	c := h.connect(t, 1)
	h.send(c, websocket.EventJoinConversation, 42)
	drain(t, c)

	tests := []struct {
		room    string
		want    int
		wantErr bool
	}{
		{"conversation:42", 1, false},
		{"user:1", 1, false},
		{"conversation:43", 0, false},
		{"lobby", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.room, func(t *testing.T) {
			n, err := h.svc.Gateway.EmitToRoom(tt.room, EmitRequest{Event: "announcement"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("EmitToRoom() error = %v, wantErr %v", err, tt.wantErr)
			}
			if n != tt.want {
				t.Errorf("EmitToRoom() = %d, want %d", n, tt.want)
			}
			drain(t, c)
		})
	}
}

func TestGateway_NotifyKind(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	h.store.followers[5] = []int64{6, 7}
	g := h.svc.Gateway

	tests := []struct {
		kind      string
		body      string
		wantKind  Kind
		wantCount int
	}{
		{"follow", `{"followerId":1,"followingId":2}`, "", 1},
		{"reaction", `{"actorId":1,"contentType":"post","contentId":3,"ownerId":2,"reaction":"like"}`, "", 1},
		{"reaction", `{"actorId":2,"contentType":"post","contentId":3,"ownerId":2,"reaction":"like"}`, "", 0},
		{"reaction", `{"actorId":1,"contentType":"album","contentId":3,"ownerId":2,"reaction":"like"}`, KindValidation, 0},
		{"comment", `{"actorId":1,"postId":3,"ownerId":2}`, "", 1},
		{"mention", `{"actorId":1,"mentionedId":2,"postId":3}`, "", 1},
		{"new_message", `{"senderId":1,"messageId":9,"recipients":[1,2,3]}`, "", 2},
		{"new_story", `{"authorId":5,"storyId":1}`, "", 2},
		{"new_conversation", `{"actorId":1,"conversationId":4,"participants":[2],"group":true}`, "", 1},
		{"friend_request", `{"id":1,"actorId":1,"recipientId":2}`, "", 1},
		{"friend_request_accepted", `{"id":1,"actorId":2,"recipientId":1}`, "", 1},
		{"friend_removed", `{"id":1,"actorId":2,"recipientId":1}`, "", 0},
		{"friend_blocked", `{"id":1}`, KindValidation, 0},
		{"follow", `not json`, KindValidation, 0},
		{"poke", `{}`, KindNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			res, err := g.NotifyKind(t.Context(), tt.kind, []byte(tt.body))
			if tt.wantKind != "" {
				if KindOf(err) != tt.wantKind {
					t.Fatalf("NotifyKind() kind = %q (%v), want %q", KindOf(err), err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("NotifyKind() error = %v", err)
			}
			if len(res.Notifications) != tt.wantCount {
				t.Errorf("notifications = %d, want %d", len(res.Notifications), tt.wantCount)
			}
		})
	}
}

func TestGateway_Presence(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	h.connect(t, 1)
	h.connect(t, 1)

	if p := h.svc.Gateway.Presence(1); !p.Online || p.Connections != 2 {
		t.Errorf("Presence(1) = %+v", p)
	}
	if p := h.svc.Gateway.Presence(2); p.Online || p.Connections != 0 {
		t.Errorf("Presence(2) = %+v", p)
	}
}

func TestGateway_Kinds(t *testing.T) {
	h := newHarness(t, HandlerOptions{})
	kinds := h.svc.Gateway.Kinds()
	if len(kinds) != 12 {
		t.Errorf("Kinds() = %v", kinds)
	}
}
