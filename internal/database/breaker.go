// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package database

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/metrics"
	"github.com/tomtom215/townsquare/internal/models"
)

func newBreaker(name string, failures uint32, timeout time.Duration) *gobreaker.CircuitBreaker[any] {
	if failures == 0 {
		failures = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}
	return gobreaker.NewCircuitBreaker[any](settings)
}

// isBreakerSuccess treats domain outcomes and caller cancellation as healthy
// database responses.
func isBreakerSuccess(err error) bool {
	return err == nil || isDomainError(err) || errors.Is(err, context.Canceled)
}

func isDomainError(err error) bool {
	return errors.Is(err, models.ErrNotParticipant) || errors.Is(err, models.ErrNotFound)
}

// run executes fn under the breaker and records query metrics.
func run[T any](ctx context.Context, db *DB, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	res, err := db.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	if isDomainError(err) {
		metrics.RecordDBQuery(op, time.Since(start), nil)
	} else {
		metrics.RecordDBQuery(op, time.Since(start), err)
	}

	var zero T
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	return res.(T), nil
}
