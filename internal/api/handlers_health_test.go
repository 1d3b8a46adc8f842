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
	"strings"
	"testing"
)

func TestHealthLive(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, body := doRequest(t, mustRequest(t, http.MethodGet, ts.srv.URL+"/health/live"))
	if resp.StatusCode != http.StatusOK || !body.Success {
		t.Fatalf("status = %d, body = %+v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		extra  error
		status int
	}{
		{"all ok", fakePinger{}, nil, http.StatusOK},
		{"database down", fakePinger{err: errors.New("dial tcp: refused")}, nil, http.StatusServiceUnavailable},
		{"no database", nil, nil, http.StatusServiceUnavailable},
		{"bus down", fakePinger{}, errors.New("nats: disconnected"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.db)
			ts.handler.AddReadinessCheck("nats", func(context.Context) error { return tt.extra })

			resp, body := doRequest(t, mustRequest(t, http.MethodGet, ts.srv.URL+"/health/ready"))
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if body.Success != (tt.status == http.StatusOK) {
				t.Errorf("success = %v", body.Success)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, fakePinger{})
	doRequest(t, mustRequest(t, http.MethodGet, ts.srv.URL+"/health/live"))

	resp, err := http.Get(ts.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "townsquare_api_requests_total") {
		t.Error("/metrics does not expose townsquare_api_requests_total")
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	ts := newTestServer(t, fakePinger{})
	resp, body := doRequest(t, mustRequest(t, http.MethodGet, ts.srv.URL+"/nowhere"))
	if resp.StatusCode != http.StatusNotFound || body.Error == nil || body.Error.Code != ErrCodeNotFound {
		t.Errorf("status = %d, body = %+v", resp.StatusCode, body)
	}
}

func mustRequest(t *testing.T, method, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	return req
}
