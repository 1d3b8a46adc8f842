// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/townsquare/internal/metrics"
	ws "github.com/tomtom215/townsquare/internal/websocket"
)

func TestWebSocket_RejectsBeforeUpgrade(t *testing.T) {
	ts := newTestServer(t, fakePinger{})
	base := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"

	tests := []struct {
		name   string
		query  string
		reason string
	}{
		{"missing token", "", "missing_token"},
		{"garbage token", "?token=not-a-jwt", "invalid_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(metrics.WSRejectedHandshakes.WithLabelValues(tt.reason))

			_, resp, err := websocket.DefaultDialer.Dial(base+tt.query, nil)
			if err == nil {
				t.Fatal("Dial() succeeded without a valid token")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("response = %v, want 401", resp)
			}
			_ = resp.Body.Close()

			after := testutil.ToFloat64(metrics.WSRejectedHandshakes.WithLabelValues(tt.reason))
			if after-before != 1 {
				t.Errorf("rejections(%s) delta = %v, want 1", tt.reason, after-before)
			}
			if ts.hub.GetClientCount() != 0 {
				t.Error("rejected handshake registered a client")
			}
		})
	}
}

func TestWebSocket_BearerHeaderFallback(t *testing.T) {
	ts := newTestServer(t, fakePinger{})
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+ts.token(t, 9))
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	_ = resp.Body.Close()
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, conn); f.Event != ws.EventPong {
		t.Errorf("event = %q, want pong", f.Event)
	}
}

func TestWebSocket_OriginCheck(t *testing.T) {
	ts := newTestServer(t, fakePinger{})
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws?token=" + ts.token(t, 3)

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"allowed origin", "https://app.example.com", true},
		{"no origin", "", true},
		{"foreign origin", "https://evil.example.net", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			if tt.ok {
				if err != nil {
					t.Fatalf("Dial() error = %v", err)
				}
				_ = conn.Close()
				return
			}
			if err == nil {
				_ = conn.Close()
				t.Fatal("Dial() succeeded from a foreign origin")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %v, want 403", resp)
			}
		})
	}
}

func TestWebSocket_ConnectionLifecycle(t *testing.T) {
	ts := newTestServer(t, fakePinger{})

	tab1 := ts.dial(t, 5)
	tab2 := ts.dial(t, 5)
	if n := len(ts.hub.ConnectionsFor(5)); n != 2 {
		t.Fatalf("connections = %d, want 2", n)
	}

	// An error on one tab stays on that tab.
	if err := tab1.WriteMessage(websocket.TextMessage, []byte(`{"event":"nope"}`)); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, tab1); f.Event != ws.EventError {
		t.Errorf("tab1 event = %q, want error", f.Event)
	}
	_ = tab2.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := tab2.ReadMessage(); err == nil {
		t.Error("tab2 received a frame meant for tab1")
	}

	_ = tab1.Close()
	deadline := time.Now().Add(2 * time.Second)
	for len(ts.hub.ConnectionsFor(5)) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("closed tab was never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !ts.hub.IsOnline(5) {
		t.Error("user offline while a tab is still open")
	}
}
