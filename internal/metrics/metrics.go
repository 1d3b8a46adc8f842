// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

// Package metrics holds the Prometheus instruments for the store, the HTTP
// surface, the realtime hub and the collaborator bus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "townsquare_db_query_duration_seconds",
			Help:    "Duration of PostgreSQL queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "townsquare_db_query_errors_total",
			Help: "Total number of PostgreSQL query errors",
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "townsquare_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "townsquare_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "townsquare_api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "townsquare_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Realtime Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "townsquare_websocket_connections",
			Help: "Current number of live realtime connections",
		},
	)

	PresenceUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "townsquare_presence_users",
			Help: "Current number of users with at least one live connection",
		},
	)

	WSRejectedHandshakes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "townsquare_websocket_rejected_handshakes_total",
			Help: "Handshakes refused before upgrade",
		},
		[]string{"reason"},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "townsquare_events_received_total",
			Help: "Inbound client events by type and outcome",
		},
		[]string{"event", "result"},
	)

	EventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "townsquare_event_duration_seconds",
			Help:    "Inbound event handling latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "townsquare_deliveries_total",
			Help: "Outbound frames queued to connections by target kind",
		},
		[]string{"target"},
	)

	SlowConsumersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "townsquare_slow_consumers_dropped_total",
			Help: "Connections closed because their send buffer was full",
		},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "townsquare_notifications_created_total",
			Help: "Notifications persisted by type",
		},
		[]string{"type"},
	)

	ObserverQueueDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "townsquare_observer_queue_dropped_total",
			Help: "Presence changes dropped because an observer queue was full",
		},
		[]string{"observer"},
	)

	// Bus Metrics
	BusMessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "townsquare_bus_messages_processed_total",
			Help: "Collaborator bus messages by subject and outcome",
		},
		[]string{"subject", "result"},
	)
)

// RecordDBQuery records a store operation.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordEvent records the outcome of one inbound client event.
func RecordEvent(event, result string, duration time.Duration) {
	EventsReceived.WithLabelValues(event, result).Inc()
	EventDuration.WithLabelValues(event).Observe(duration.Seconds())
}

// RecordDeliveries adds n queued frames for a target kind ("user", "room", "client").
func RecordDeliveries(target string, n int) {
	if n > 0 {
		Deliveries.WithLabelValues(target).Add(float64(n))
	}
}

// SetPresence updates the connection and user gauges.
func SetPresence(connections, users int) {
	WSConnections.Set(float64(connections))
	PresenceUsers.Set(float64(users))
}
