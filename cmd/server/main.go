// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/townsquare/internal/api"
	"github.com/tomtom215/townsquare/internal/auth"
	"github.com/tomtom215/townsquare/internal/config"
	"github.com/tomtom215/townsquare/internal/database"
	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/presence"
	"github.com/tomtom215/townsquare/internal/realtime"
	"github.com/tomtom215/townsquare/internal/supervisor"
	"github.com/tomtom215/townsquare/internal/supervisor/services"
	ws "github.com/tomtom215/townsquare/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Bool("redis_enabled", cfg.Redis.Enabled).
		Msg("Starting Townsquare real-time server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// database.New applies pending migrations.
	db, err := database.New(ctx, &cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()
	logging.Info().Msg("Database initialized")

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	authn := auth.NewAuthenticator(jwtManager)

	activity := realtime.NewActivityTracker(db)
	hub := ws.NewHub(
		ws.WithClientConfig(ws.ClientConfig{
			SendBuffer: cfg.Realtime.SendBuffer,
			EventRate:  rate.Limit(cfg.Realtime.EventRate),
			EventBurst: cfg.Realtime.EventBurst,
		}),
		ws.WithObserver(activity),
	)

	svc, err := realtime.New(hub, db, realtime.HandlerOptions{
		MaxMessageLength: cfg.Realtime.MaxMessageLength,
		NotifyOnMessage:  cfg.Realtime.NotifyOnSocketMessage,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize realtime service")
	}

	mirror := initPresence(&cfg.Redis, hub)

	bus, err := InitBus(&cfg.NATS, svc.Gateway)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS ingress")
	}
	defer bus.Close()

	handler := api.NewHandler(cfg, hub, svc, authn, db)
	if bus != nil {
		handler.AddReadinessCheck("nats", bus.Ping)
	}

	router := api.NewRouter(handler, api.NewChiMiddleware(api.NewChiMiddlewareConfig(&cfg.Security)), cfg.Security.InternalToken)
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddRealtimeService(services.NewHubService(hub))
	tree.AddRealtimeService(services.NewTaskService("activity-tracker", activity.Run))
	if mirror != nil {
		tree.AddRealtimeService(services.NewTaskService("presence-mirror", mirror.Run))
	}
	bus.AddToSupervisor(tree, cfg.Server.ShutdownTimeout)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, s := range unstopped {
		logging.Warn().Str("service", s.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped")
}

// initPresence builds the Redis presence mirror and attaches it to the hub.
// It returns nil when redis.enabled is off.
func initPresence(cfg *config.RedisConfig, hub *ws.Hub) *presence.Mirror {
	if !cfg.Enabled {
		logging.Info().Msg("Presence mirror disabled (REDIS_ENABLED=false)")
		return nil
	}
	mirror := presence.NewMirror(presence.NewClient(cfg), cfg.KeyPrefix, hub)
	hub.AddObserver(mirror)
	// Not a readiness check: the hub stays authoritative while Redis is down.
	logging.Info().
		Str("addr", cfg.Addr).
		Str("hash", mirror.HashKey()).
		Str("channel", mirror.Channel()).
		Msg("Presence mirror enabled")
	return mirror
}
