// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

// General API information for swag.
//
// @title Townsquare Internal API
// @version 1.0
// @description Emit and notify commands for write-path services, plus presence lookups.
// @description
// @description ## Authentication
// @description
// @description Every route requires `Authorization: Bearer <INTERNAL_API_TOKEN>`.
// @description When no token is configured the routes answer 503.
// @description
// @description ## Error Responses
// @description
// @description ```json
// @description {
// @description   "success": false,
// @description   "error": {"code": "VALIDATION_FAILED", "message": "userId must be greater than 0"},
// @description   "meta": {"request_id": "...", "timestamp": "2026-01-01T00:00:00Z"}
// @description }
// @description ```
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @BasePath /api/v1/internal
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Shared internal token, sent as "Bearer <token>".
//
// @tag.name Internal
// @tag.description Collaborator commands and presence lookups

package main
