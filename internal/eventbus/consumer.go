// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/metrics"
	"github.com/tomtom215/townsquare/internal/models"
	"github.com/tomtom215/townsquare/internal/realtime"
)

// CorrelationIDMetadata is the message metadata key copied into the
// logging context.
const CorrelationIDMetadata = "correlation_id"

// Gateway is the subset of realtime.Gateway the consumer drives.
type Gateway interface {
	EmitToUser(userID int64, req realtime.EmitRequest) (int, error)
	EmitToRoom(room string, req realtime.EmitRequest) (int, error)
	Notify(ctx context.Context, in models.NewNotification) (*models.Notification, error)
	NotifyKind(ctx context.Context, kind string, body []byte) (realtime.KindResult, error)
}

// ConsumerConfig controls retry behavior and subject naming.
type ConsumerConfig struct {
	SubjectPrefix string

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	CloseTimeout time.Duration
}

// DefaultConsumerConfig returns production defaults.
func DefaultConsumerConfig(prefix string) ConsumerConfig {
	return ConsumerConfig{
		SubjectPrefix:        prefix,
		RetryMaxRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     2 * time.Second,
		CloseTimeout:         10 * time.Second,
	}
}

// Consumer is a watermill router with one handler per command subject.
type Consumer struct {
	router  *message.Router
	gateway Gateway
	config  ConsumerConfig
}

// NewConsumer registers the command handlers on sub.
func NewConsumer(cfg ConsumerConfig, sub message.Subscriber, gateway Gateway, logger watermill.LoggerAdapter) (*Consumer, error) {
	if sub == nil || gateway == nil {
		return nil, fmt.Errorf("consumer requires a subscriber and a gateway")
	}
	if logger == nil {
		logger = watermill.NewSlogLogger(logging.NewSlogLogger())
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	c := &Consumer{router: router, gateway: gateway, config: cfg}

	// Outer to inner: panics become errors, then transient errors retry.
	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      2.0,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	for suffix, fn := range map[string]func(ctx context.Context, payload []byte) error{
		SubjectEmitUser: c.handleEmitUser,
		SubjectEmitRoom: c.handleEmitRoom,
		SubjectNotify:   c.handleNotify,
	} {
		subject := Subject(cfg.SubjectPrefix, suffix)
		router.AddConsumerHandler("townsquare_"+suffix, subject, sub, c.wrap(subject, fn))
	}
	return c, nil
}

// Run blocks until ctx is canceled or the router stops.
func (c *Consumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running closes once every handler is subscribed.
func (c *Consumer) Running() <-chan struct{} {
	return c.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for in-flight handlers.
func (c *Consumer) Close() error {
	return c.router.Close()
}

// wrap adds logging context, outcome metrics and the ack policy: invalid
// commands are acked, everything else is returned for retry or nack.
func (c *Consumer) wrap(subject string, fn func(ctx context.Context, payload []byte) error) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		ctx := msg.Context()
		if id := msg.Metadata.Get(CorrelationIDMetadata); id != "" {
			ctx = logging.ContextWithCorrelationID(ctx, id)
		} else {
			ctx = logging.ContextWithNewCorrelationID(ctx)
		}

		err := fn(ctx, msg.Payload)
		var partial *partialError
		switch {
		case err == nil:
			metrics.BusMessagesProcessed.WithLabelValues(subject, "ok").Inc()
			return nil
		case errors.As(err, &partial):
			// Redelivery would duplicate the notifications already created.
			metrics.BusMessagesProcessed.WithLabelValues(subject, "partial").Inc()
			logging.Ctx(ctx).Warn().
				Err(partial.err).
				Str("subject", subject).
				Int("created", partial.created).
				Msg("bus command partly applied")
			return nil
		case realtime.KindOf(err) == realtime.KindValidation || realtime.KindOf(err) == realtime.KindNotFound:
			metrics.BusMessagesProcessed.WithLabelValues(subject, "rejected").Inc()
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("subject", subject).
				Str("message_uuid", msg.UUID).
				Msg("dropping invalid bus command")
			return nil
		default:
			metrics.BusMessagesProcessed.WithLabelValues(subject, "failed").Inc()
			logging.Ctx(ctx).Error().
				Err(err).
				Str("subject", subject).
				Str("message_uuid", msg.UUID).
				Msg("bus command failed")
			return err
		}
	}
}

func (c *Consumer) handleEmitUser(_ context.Context, payload []byte) error {
	var cmd EmitUserCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return realtime.NewError(realtime.KindValidation, "Invalid command", err)
	}
	_, err := c.gateway.EmitToUser(cmd.UserID, realtime.EmitRequest{Event: cmd.Event, Data: cmd.Data})
	return err
}

func (c *Consumer) handleEmitRoom(_ context.Context, payload []byte) error {
	var cmd EmitRoomCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return realtime.NewError(realtime.KindValidation, "Invalid command", err)
	}
	_, err := c.gateway.EmitToRoom(cmd.Room, realtime.EmitRequest{Event: cmd.Event, Data: cmd.Data})
	return err
}

func (c *Consumer) handleNotify(ctx context.Context, payload []byte) error {
	var cmd NotifyCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return realtime.NewError(realtime.KindValidation, "Invalid command", err)
	}
	if cmd.Kind != "" {
		res, err := c.gateway.NotifyKind(ctx, cmd.Kind, cmd.Data)
		if err != nil && len(res.Notifications) > 0 {
			return &partialError{err: err, created: len(res.Notifications)}
		}
		return err
	}

	var in models.NewNotification
	if err := json.Unmarshal(cmd.Data, &in); err != nil {
		return realtime.NewError(realtime.KindValidation, "Invalid notification", err)
	}
	_, err := c.gateway.Notify(ctx, in)
	return err
}

// partialError marks a fan-out that created some notifications before
// failing.
type partialError struct {
	err     error
	created int
}

func (e *partialError) Error() string {
	return fmt.Sprintf("partial fan-out (%d created): %v", e.created, e.err)
}

func (e *partialError) Unwrap() error { return e.err }
