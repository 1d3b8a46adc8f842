// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

/*
Package api serves the HTTP surface of the delivery service.

Routes:

	GET  /ws                                        socket upgrade (token query or bearer header)
	GET  /health/live                               liveness
	GET  /health/ready                              readiness (database and optional checks)
	GET  /metrics                                   Prometheus exposition
	POST /api/v1/internal/emit/user/{userID}        push {event, data} to a user
	POST /api/v1/internal/emit/room/{room}          push {event, data} to a room
	POST /api/v1/internal/notifications             persist and deliver a notification
	POST /api/v1/internal/notifications/{kind}      run a notification helper
	GET  /api/v1/internal/presence/{userID}         online flag and connection count

The /api/v1/internal routes are for trusted collaborators (the CRUD
service) and require security.internal_token as a bearer token. They share
realtime.Gateway with the NATS consumer so both ingress paths behave the
same.

Handshake authentication happens before the upgrade: a missing or invalid
token is answered with 401 and no socket is created.

JSON responses use the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "VALIDATION_FAILED", "message": "..."}}
*/
package api
