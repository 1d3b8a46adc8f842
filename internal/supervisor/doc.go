// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

/*
Package supervisor runs the long-lived parts of the server under a suture v4
tree.

# Layout

	RootSupervisor ("townsquare")
	├── "realtime-layer"
	│   ├── HubService
	│   ├── TaskService "activity-tracker"
	│   └── TaskService "presence-mirror" (if REDIS_ENABLED)
	├── "bus-layer"
	│   ├── TaskService "nats-server" (if NATS_EMBEDDED)
	│   └── ConsumerService (if NATS_ENABLED)
	└── "api-layer"
	    └── HTTPServerService

Each layer counts failures on its own, so a consumer that keeps losing its
broker connection backs off without restarting the hub and closing every
socket.

# Service Contract

Services implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Returning ctx.Err() after cancellation is a clean stop. Any other return
value is a crash and the service is restarted under the layer's backoff
policy.

# Shutdown

Canceling the context passed to Serve stops every layer. Services that do
not return within TreeConfig.ShutdownTimeout are listed by
UnstoppedServiceReport.

Event logging goes through sutureslog, so restarts and backoffs land in the
same zerolog output as the rest of the server.
*/
package supervisor
