// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/townsquare/internal/config"
	"github.com/tomtom215/townsquare/internal/eventbus"
	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/supervisor"
	"github.com/tomtom215/townsquare/internal/supervisor/services"
)

// BusComponents holds the collaborator ingress over NATS.
type BusComponents struct {
	server    *eventbus.EmbeddedServer
	transport eventbus.TransportConfig
	consumer  eventbus.ConsumerConfig
	gateway   eventbus.Gateway
	logger    watermill.LoggerAdapter

	// newSubscriber is swapped in tests.
	newSubscriber func() (message.Subscriber, error)

	mu      sync.Mutex
	current *eventbus.Consumer
}

// InitBus prepares the NATS ingress when nats.enabled is set. It returns
// nil, nil when disabled. The embedded server, if configured, is started
// here so its URL is known before the consumer is built.
func InitBus(cfg *config.NATSConfig, gateway eventbus.Gateway) (*BusComponents, error) {
	if !cfg.Enabled {
		logging.Info().Msg("NATS ingress disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	b := &BusComponents{
		consumer: eventbus.DefaultConsumerConfig(cfg.SubjectPrefix),
		gateway:  gateway,
		logger:   watermill.NewSlogLogger(logging.NewSlogLogger()),
	}

	url := ""
	if cfg.EmbeddedServer {
		srv, err := eventbus.NewEmbeddedServer(cfg.Host, cfg.Port)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		b.server = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}
	b.transport = eventbus.NewTransportConfig(cfg, url)
	b.newSubscriber = func() (message.Subscriber, error) {
		return eventbus.NewSubscriber(b.transport, b.logger)
	}

	logging.Info().
		Str("url", b.transport.URL).
		Str("subject_prefix", cfg.SubjectPrefix).
		Str("queue_group", b.transport.QueueGroup).
		Int("subscribers", b.transport.SubscribersCount).
		Msg("NATS ingress configured")
	return b, nil
}

// AddToSupervisor registers the embedded server and the consumer with the
// bus layer. Safe on nil.
func (b *BusComponents) AddToSupervisor(tree *supervisor.SupervisorTree, shutdownTimeout time.Duration) {
	if b == nil {
		return
	}
	if b.server != nil {
		tree.AddBusService(services.NewTaskService("nats-server", b.server.Serve))
	}
	tree.AddBusService(services.NewConsumerService(b.newConsumer, shutdownTimeout))
}

// Close stops the embedded server if the supervisor never ran it.
func (b *BusComponents) Close() {
	if b == nil || b.server == nil || !b.server.IsRunning() {
		return
	}
	b.server.Shutdown()
}

// newConsumer builds a consumer over a fresh subscription.
func (b *BusComponents) newConsumer() (services.Consumer, error) {
	sub, err := b.newSubscriber()
	if err != nil {
		return nil, err
	}
	consumer, err := eventbus.NewConsumer(b.consumer, sub, b.gateway, b.logger)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}
	b.mu.Lock()
	b.current = consumer
	b.mu.Unlock()
	return &busConsumer{Consumer: consumer, sub: sub, owner: b}, nil
}

// Ping reports whether a consumer is subscribed, for readiness.
func (b *BusComponents) Ping(ctx context.Context) error {
	if b.server != nil {
		if err := b.server.Ping(ctx); err != nil {
			return err
		}
	}
	b.mu.Lock()
	current := b.current
	b.mu.Unlock()
	if current == nil {
		return errors.New("consumer not running")
	}
	select {
	case <-current.Running():
		return nil
	default:
		return errors.New("consumer not subscribed")
	}
}

// busConsumer closes the subscription along with the router.
type busConsumer struct {
	*eventbus.Consumer
	sub   message.Subscriber
	owner *BusComponents
}

func (c *busConsumer) Close() error {
	c.owner.mu.Lock()
	if c.owner.current == c.Consumer {
		c.owner.current = nil
	}
	c.owner.mu.Unlock()

	routerErr := c.Consumer.Close()
	subErr := c.sub.Close()
	return errors.Join(routerErr, subErr)
}
