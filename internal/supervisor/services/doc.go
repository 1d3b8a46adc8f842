// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

// Package services adapts server components to suture.Service.
//
// HTTPServerService translates ListenAndServe/Shutdown, HubService wraps
// the connection hub, ConsumerService rebuilds the bus consumer on every
// restart, and TaskService names a plain run-until-canceled loop.
package services
