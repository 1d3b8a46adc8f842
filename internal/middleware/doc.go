// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

/*
Package middleware provides chi-compatible HTTP middleware shared by the
socket endpoint and the internal collaborator API.

Key Components:

  - RequestID: request and correlation ids on the context and the
    X-Request-ID response header
  - PrometheusMetrics: request counts and latency labelled by route pattern
  - BearerToken: static bearer token guard for service-to-service routes

Typical stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Route("/api/v1/internal", func(r chi.Router) {
	    r.Use(middleware.BearerToken(cfg.Security.InternalToken))
	    ...
	})

The metrics wrapper forwards http.Hijacker so the /ws upgrade still works
behind it.
*/
package middleware
