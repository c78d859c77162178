// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package services

import (
	"context"
	"errors"
	"fmt"
)

// Dispatcher is the lifecycle of the applog async dispatchers
// (*applog.ChannelDispatcher, *applog.BrokerDispatcher, *applog.SpoolDispatcher).
type Dispatcher interface {
	Serve(ctx context.Context) error
	Close() error
	Name() string
}

// DispatcherService runs an async log dispatcher under suture.
//
// A dispatcher that fails (a broker subscription dropping, for instance)
// returns its error and is restarted by the supervisor. Close is only
// called once the context is canceled, because a closed dispatcher
// rejects records and cannot be served again.
type DispatcherService struct {
	dispatcher Dispatcher
}

// NewDispatcherService wraps dispatcher.
func NewDispatcherService(dispatcher Dispatcher) *DispatcherService {
	return &DispatcherService{dispatcher: dispatcher}
}

// Serve implements suture.Service.
func (s *DispatcherService) Serve(ctx context.Context) error {
	err := s.dispatcher.Serve(ctx)
	if ctx.Err() == nil {
		if err == nil {
			return fmt.Errorf("%s dispatcher stopped unexpectedly", s.dispatcher.Name())
		}
		return fmt.Errorf("%s dispatcher: %w", s.dispatcher.Name(), err)
	}

	if closeErr := s.dispatcher.Close(); closeErr != nil {
		return errors.Join(ctx.Err(), fmt.Errorf("close %s dispatcher: %w", s.dispatcher.Name(), closeErr))
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (s *DispatcherService) String() string {
	return "log-dispatcher-" + s.dispatcher.Name()
}
