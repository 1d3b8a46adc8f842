// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

// Package config loads Townsquare configuration from defaults, an optional
// YAML file and environment variables (highest priority).
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Realtime RealtimeConfig `koanf:"realtime"`
	NATS     NATSConfig     `koanf:"nats"`
	Redis    RedisConfig    `koanf:"redis"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds the PostgreSQL pool and circuit breaker settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`

	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32 `koanf:"breaker_failures"`
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`
}

// SecurityConfig holds authentication, CORS and rate limit settings.
type SecurityConfig struct {
	JWTSecret   string   `koanf:"jwt_secret"`
	CORSOrigins []string `koanf:"cors_origins"`

	// InternalToken guards the collaborator HTTP API. Empty disables the API.
	InternalToken string `koanf:"internal_token"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// RealtimeConfig holds per-connection limits and delivery behavior.
type RealtimeConfig struct {
	SendBuffer int `koanf:"send_buffer"`

	// EventRate is the sustained number of inbound events per second a single
	// connection may send; EventBurst is the bucket size.
	EventRate  float64 `koanf:"event_rate"`
	EventBurst int     `koanf:"event_burst"`

	// NotifyOnSocketMessage creates a new_message notification for every other
	// participant when a message arrives over the socket.
	NotifyOnSocketMessage bool `koanf:"notify_on_socket_message"`

	MaxMessageLength int `koanf:"max_message_length"`
}

// NATSConfig holds the collaborator ingress bus settings.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	SubjectPrefix  string `koanf:"subject_prefix"`
	QueueGroup     string `koanf:"queue_group"`
	Subscribers    int    `koanf:"subscribers"`
}

// RedisConfig holds the presence mirror settings.
type RedisConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// Load reads configuration using the layered koanf loader.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
