// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/tomtom215/townsquare/docs" // registers the OpenAPI document
	"github.com/tomtom215/townsquare/internal/middleware"
)

// Router builds the chi route tree over a Handler.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	internalToken string
}

// NewRouter creates a Router. An empty internalToken leaves the internal
// routes mounted but answering 503.
func NewRouter(handler *Handler, mw *ChiMiddleware, internalToken string) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: mw,
		internalToken: internalToken,
	}
}

// SetupChi returns the root http.Handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).Error(http.StatusNotFound, ErrCodeNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).Error(http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())

	// CORS only matters for browsers; the upgrader checks Origin itself.
	r.Get("/ws", router.handler.WebSocket)

	r.Route("/api/v1/internal", func(r chi.Router) {
		r.Use(router.chiMiddleware.CORS())
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.BearerToken(router.internalToken))

		r.Post("/emit/user/{userID}", router.handler.EmitToUser)
		r.Post("/emit/room/{room}", router.handler.EmitToRoom)
		r.Post("/notifications", router.handler.CreateNotification)
		r.Get("/notifications/kinds", router.handler.NotificationKinds)
		r.Post("/notifications/{kind}", router.handler.NotifyKind)
		r.Get("/presence/{userID}", router.handler.Presence)

		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/api/v1/internal/swagger/doc.json"),
			httpSwagger.DeepLinking(true),
			httpSwagger.DocExpansion("list"),
			httpSwagger.DomID("swagger-ui"),
		))
	})

	return r
}
