// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

// Package database is the PostgreSQL store behind the realtime layer:
// messages, conversation participants, read receipts, notifications and
// user activity. Every call goes through a circuit breaker so a failing
// database is reported as a persistence error instead of piling up
// blocked handlers.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/townsquare/internal/config"
	"github.com/tomtom215/townsquare/internal/logging"
)

// DB wraps a pgx connection pool.
type DB struct {
	pool    *pgxpool.Pool
	breaker *gobreaker.CircuitBreaker[any]
}

// New connects to PostgreSQL, verifies the connection and applies pending
// migrations.
func New(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout(cfg))
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := NewWithPool(pool, cfg)
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logging.Info().
		Int32("max_conns", poolCfg.MaxConns).
		Msg("Connected to PostgreSQL")
	return db, nil
}

// NewWithPool wraps an existing pool without pinging or migrating.
func NewWithPool(pool *pgxpool.Pool, cfg *config.DatabaseConfig) *DB {
	return &DB{
		pool:    pool,
		breaker: newBreaker("postgres", cfg.BreakerFailures, cfg.BreakerTimeout),
	}
}

func connectTimeout(cfg *config.DatabaseConfig) time.Duration {
	if cfg.ConnectTimeout > 0 {
		return cfg.ConnectTimeout
	}
	return 5 * time.Second
}

// Ping checks database reachability. It bypasses the breaker so readiness
// reflects the database itself.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// BreakerState reports the circuit breaker state ("closed", "half-open", "open").
func (db *DB) BreakerState() string {
	return db.breaker.State().String()
}

// Close closes the pool.
func (db *DB) Close() {
	db.pool.Close()
}
