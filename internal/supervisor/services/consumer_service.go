// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package services

import (
	"context"
	"fmt"
	"time"
)

// Consumer is satisfied by *eventbus.Consumer.
type Consumer interface {
	Run(ctx context.Context) error
	Close() error
}

// ConsumerFactory builds a consumer with a fresh broker subscription.
type ConsumerFactory func() (Consumer, error)

// ConsumerService runs the collaborator command consumer. A router cannot be
// run twice, so every Serve builds a new consumer from the factory and
// closes it on the way out.
type ConsumerService struct {
	factory         ConsumerFactory
	shutdownTimeout time.Duration
	name            string
}

// NewConsumerService wraps factory. A non-positive shutdownTimeout means 10s.
func NewConsumerService(factory ConsumerFactory, shutdownTimeout time.Duration) *ConsumerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &ConsumerService{
		factory:         factory,
		shutdownTimeout: shutdownTimeout,
		name:            "bus-consumer",
	}
}

// Serve implements suture.Service. Build failures are returned so suture
// retries them under backoff, which covers a broker that is not up yet.
func (s *ConsumerService) Serve(ctx context.Context) error {
	consumer, err := s.factory()
	if err != nil {
		return fmt.Errorf("build consumer: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- consumer.Run(ctx)
	}()

	select {
	case err := <-errCh:
		_ = consumer.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("consumer stopped: %w", err)
		}
		return fmt.Errorf("consumer stopped unexpectedly")

	case <-ctx.Done():
		closed := make(chan error, 1)
		go func() { closed <- consumer.Close() }()
		select {
		case <-closed:
		case <-time.After(s.shutdownTimeout):
			return fmt.Errorf("consumer close timed out after %s", s.shutdownTimeout)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *ConsumerService) String() string {
	return s.name
}
