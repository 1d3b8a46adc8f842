// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package eventbus

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/townsquare/internal/config"
)

// TransportConfig holds connection settings shared by the subscriber and
// publisher.
type TransportConfig struct {
	URL              string
	QueueGroup       string
	SubscribersCount int
	MaxReconnects    int
	ReconnectWait    time.Duration
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration
}

// NewTransportConfig derives transport settings from the nats section.
// url overrides cfg.URL when non-empty, for the embedded server.
func NewTransportConfig(cfg *config.NATSConfig, url string) TransportConfig {
	if url == "" {
		url = cfg.URL
	}
	subscribers := cfg.Subscribers
	if subscribers <= 0 {
		subscribers = 1
	}
	return TransportConfig{
		URL:              url,
		QueueGroup:       cfg.QueueGroup,
		SubscribersCount: subscribers,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     10 * time.Second,
	}
}

func (c TransportConfig) natsOptions(logger watermill.LoggerAdapter, role string) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name("townsquare-" + role),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(c.MaxReconnects),
		natsgo.ReconnectWait(c.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS "+role+" disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS "+role+" reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
}

// NewSubscriber creates a core NATS queue subscriber. Every instance in the
// queue group shares the command load.
func NewSubscriber(cfg TransportConfig, logger watermill.LoggerAdapter) (*wmNats.Subscriber, error) {
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      cfg.natsOptions(logger, "subscriber"),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}
	return sub, nil
}

// NewPublisher creates a core NATS publisher for collaborators and tests.
func NewPublisher(cfg TransportConfig, logger watermill.LoggerAdapter) (*wmNats.Publisher, error) {
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: cfg.natsOptions(logger, "publisher"),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	return pub, nil
}
