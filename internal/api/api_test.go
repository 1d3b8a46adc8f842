// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/townsquare/internal/auth"
	"github.com/tomtom215/townsquare/internal/config"
	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/models"
	"github.com/tomtom215/townsquare/internal/realtime"
	ws "github.com/tomtom215/townsquare/internal/websocket"
)

const (
	testSecret        = "test-secret-that-is-at-least-32-characters"
	testInternalToken = "internal-token"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// fakeStore is a minimal realtime.Store. Notifications fail for users in
// failFor.
type fakeStore struct {
	mu            sync.Mutex
	notifications []models.Notification
	followers     map[int64][]int64
	failFor       map[int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{followers: make(map[int64][]int64), failFor: make(map[int64]bool)}
}

func (s *fakeStore) IsActiveParticipant(context.Context, int64, int64) (bool, error) {
	return true, nil
}

func (s *fakeStore) CreateMessage(_ context.Context, in models.NewMessage) (*models.Message, error) {
	return &models.Message{ID: 1, ConversationID: in.ConversationID, SenderID: in.SenderID, Message: in.Body}, nil
}

func (s *fakeStore) ListActiveParticipants(context.Context, int64) ([]int64, error) {
	return nil, nil
}

func (s *fakeStore) MarkConversationRead(context.Context, int64, int64) (int64, error) {
	return 0, nil
}

func (s *fakeStore) CreateNotification(_ context.Context, in models.NewNotification) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[in.UserID] {
		return nil, errors.New("connection refused")
	}
	n := models.Notification{
		ID:        int64(len(s.notifications) + 1),
		UserID:    in.UserID,
		ActorID:   in.ActorID,
		Type:      in.Type,
		Message:   in.Message,
		CreatedAt: time.Now(),
	}
	s.notifications = append(s.notifications, n)
	return &n, nil
}

func (s *fakeStore) MarkNotificationsRead(context.Context, int64, []int64) ([]int64, error) {
	return []int64{}, nil
}

func (s *fakeStore) TouchLastActive(context.Context, int64) error { return nil }

func (s *fakeStore) ListFollowers(_ context.Context, userID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.followers[userID], nil
}

// fakePinger returns err from Ping.
type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	srv     *httptest.Server
	hub     *ws.Hub
	store   *fakeStore
	handler *Handler
	jwt     *auth.JWTManager
}

func newTestServer(t *testing.T, db Pinger) *testServer {
	t.Helper()
	cfg := &config.Config{
		Security: config.SecurityConfig{
			JWTSecret:         testSecret,
			CORSOrigins:       []string{"https://app.example.com"},
			InternalToken:     testInternalToken,
			RateLimitDisabled: true,
		},
	}
	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	hub := ws.NewHub()
	store := newFakeStore()
	svc, err := realtime.New(hub, store, realtime.HandlerOptions{})
	if err != nil {
		t.Fatalf("realtime.New() error = %v", err)
	}

	handler := NewHandler(cfg, hub, svc, auth.NewAuthenticator(jwtManager), db)
	router := NewRouter(handler, NewChiMiddleware(NewChiMiddlewareConfig(&cfg.Security)), cfg.Security.InternalToken)

	srv := httptest.NewServer(router.SetupChi())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, hub: hub, store: store, handler: handler, jwt: jwtManager}
}

func (ts *testServer) token(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := ts.jwt.GenerateToken(userID, "user", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return tok
}

// dial opens an authenticated socket for userID and waits until the hub
// has registered the new connection.
func (ts *testServer) dial(t *testing.T, userID int64) *websocket.Conn {
	t.Helper()
	before := len(ts.hub.ConnectionsFor(userID))
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws?token=" + ts.token(t, userID)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for len(ts.hub.ConnectionsFor(userID)) <= before {
		if time.Now().After(deadline) {
			t.Fatalf("user %d never registered", userID)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

// do sends an internal API request authenticated with the internal token.
func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, APIResponse) {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testInternalToken)
	req.Header.Set("Content-Type", "application/json")
	return doRequest(t, req)
}

func doRequest(t *testing.T, req *http.Request) (*http.Response, APIResponse) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer resp.Body.Close()

	var out APIResponse
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
	}
	return resp, out
}

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var f wireFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("unmarshal frame %q: %v", raw, err)
	}
	return f
}
