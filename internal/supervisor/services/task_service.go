// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package services

import (
	"context"
	"fmt"
)

// RunFunc blocks until ctx is canceled or the work fails.
type RunFunc func(ctx context.Context) error

// TaskService supervises a RunFunc under a name. The activity tracker, the
// presence mirror and the embedded NATS server run this way.
type TaskService struct {
	name string
	run  RunFunc
}

// NewTaskService wraps run.
func NewTaskService(name string, run RunFunc) *TaskService {
	return &TaskService{name: name, run: run}
}

// Serve implements suture.Service. A nil return before cancellation is
// reported as a failure so the task is restarted.
func (s *TaskService) Serve(ctx context.Context) error {
	err := s.run(ctx)
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case err == nil:
		return fmt.Errorf("%s returned before shutdown", s.name)
	default:
		return err
	}
}

func (s *TaskService) String() string {
	return s.name
}
