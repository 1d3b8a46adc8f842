// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/models"
	"github.com/tomtom215/townsquare/internal/websocket"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

var errStoreDown = errors.New("connection refused")

// memStore is an in-memory Store.
type memStore struct {
	mu            sync.Mutex
	participants  map[int64]map[int64]bool // conversation -> user -> active
	followers     map[int64][]int64
	messages      []models.Message
	reads         map[[2]int64]bool // conversation,user
	notifications []models.Notification
	touched       []int64

	failCreateMessage bool
	failParticipants  bool
	failNotify        map[int64]bool
	failCheck         bool
}

func newMemStore() *memStore {
	return &memStore{
		participants: make(map[int64]map[int64]bool),
		followers:    make(map[int64][]int64),
		reads:        make(map[[2]int64]bool),
		failNotify:   make(map[int64]bool),
	}
}

func (s *memStore) addParticipant(conversationID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.participants[conversationID] == nil {
		s.participants[conversationID] = make(map[int64]bool)
	}
	s.participants[conversationID][userID] = true
}

func (s *memStore) removeParticipant(conversationID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[conversationID][userID] = false
}

func (s *memStore) IsActiveParticipant(_ context.Context, conversationID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCheck {
		return false, errStoreDown
	}
	return s.participants[conversationID][userID], nil
}

func (s *memStore) CreateMessage(_ context.Context, in models.NewMessage) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateMessage {
		return nil, errStoreDown
	}
	members, ok := s.participants[in.ConversationID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if !members[in.SenderID] {
		return nil, models.ErrNotParticipant
	}
	msg := models.Message{
		ID:             int64(len(s.messages) + 1),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Message:        in.Body,
		MessageType:    in.MessageType,
		MediaURL:       in.MediaURL,
		CreatedAt:      time.Now(),
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *memStore) ListActiveParticipants(_ context.Context, conversationID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failParticipants {
		return nil, errStoreDown
	}
	var ids []int64
	for id, active := range s.participants[conversationID] {
		if active {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) MarkConversationRead(_ context.Context, conversationID, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.participants[conversationID][userID] {
		return 0, models.ErrNotParticipant
	}
	key := [2]int64{conversationID, userID}
	if s.reads[key] {
		return 0, nil
	}
	s.reads[key] = true
	return 1, nil
}

func (s *memStore) CreateNotification(_ context.Context, in models.NewNotification) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNotify[in.UserID] {
		return nil, errStoreDown
	}
	now := time.Now()
	n := models.Notification{
		ID:         int64(len(s.notifications) + 1),
		UserID:     in.UserID,
		ActorID:    in.ActorID,
		Type:       in.Type,
		TargetType: in.TargetType,
		TargetID:   in.TargetID,
		Message:    in.Message,
		Metadata:   in.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.notifications = append(s.notifications, n)
	return &n, nil
}

func (s *memStore) MarkNotificationsRead(_ context.Context, userID int64, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := []int64{}
	for _, id := range ids {
		for i := range s.notifications {
			n := &s.notifications[i]
			if n.ID == id && n.UserID == userID {
				n.IsRead = true
				owned = append(owned, id)
			}
		}
	}
	return owned, nil
}

func (s *memStore) TouchLastActive(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = append(s.touched, userID)
	return nil
}

func (s *memStore) ListFollowers(_ context.Context, userID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.followers[userID], nil
}

func (s *memStore) notificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

func (s *memStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// frame is a decoded outbound event.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type harness struct {
	hub   *websocket.Hub
	store *memStore
	svc   *Service
}

func newHarness(t *testing.T, opts HandlerOptions) *harness {
	t.Helper()
	hub := websocket.NewHub()
	store := newMemStore()
	svc, err := New(hub, store, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &harness{hub: hub, store: store, svc: svc}
}

func (h *harness) connect(t *testing.T, userID int64) *websocket.Client {
	t.Helper()
	c := websocket.NewClient(h.hub, nil, userID, "")
	if err := h.hub.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return c
}

// send dispatches one inbound event from c.
func (h *harness) send(c *websocket.Client, event string, data any) {
	raw, _ := json.Marshal(map[string]any{"event": event, "data": data})
	h.svc.Router.HandleFrame(context.Background(), c, raw)
}

// drain returns every frame queued for c.
func drain(t *testing.T, c *websocket.Client) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case b, ok := <-c.Send():
			if !ok {
				return out
			}
			var f frame
			if err := json.Unmarshal(b, &f); err != nil {
				t.Fatalf("unmarshal frame: %v", err)
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

// only asserts exactly one frame of event is queued for c and returns it.
func only(t *testing.T, c *websocket.Client, event string) frame {
	t.Helper()
	frames := drain(t, c)
	if len(frames) != 1 {
		t.Fatalf("got %d frames %v, want exactly one %q", len(frames), frames, event)
	}
	if frames[0].Event != event {
		t.Fatalf("event = %q (%s), want %q", frames[0].Event, frames[0].Data, event)
	}
	return frames[0]
}

func errorMessage(t *testing.T, f frame) string {
	t.Helper()
	var p ErrorPayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	return p.Message
}
