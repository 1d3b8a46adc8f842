// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

/*
Package eventbus consumes collaborator commands from NATS and applies them
through realtime.Gateway, the same surface the internal HTTP API uses.

Subjects, under nats.subject_prefix:

	<prefix>.emit.user   {"userId": 7, "event": "friend_request", "data": {...}}
	<prefix>.emit.room   {"room": "conversation:42", "event": "...", "data": {...}}
	<prefix>.notify      {"kind": "follow", "data": {...}}
	                     {"data": <NewNotification>}   (kind omitted)

Messages are consumed with core NATS queue subscriptions through
watermill-nats; JetStream is not used because delivery is best effort
with no offline queue. A command rejected as invalid is acked and logged
so it is never redelivered. Any other failure is retried in-process and
then nacked.

An embedded nats-server can be started for single-binary deployments.
*/
package eventbus
