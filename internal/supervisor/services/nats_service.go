// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"
)

// EmbeddedServer is satisfied by *applog.EmbeddedNATS.
type EmbeddedServer interface {
	Running() bool
	Shutdown(ctx context.Context) error
}

// EmbeddedNATSService owns the shutdown of an embedded NATS server.
//
// The server is started before the tree so the dispatcher can connect to
// it; this service keeps it alive for the life of the tree and stops it on
// cancellation. A server that died cannot be restarted from its handle, so
// the service then asks suture not to restart it and the nats dispatcher
// reports the outage through its own failures.
type EmbeddedNATSService struct {
	server          EmbeddedServer
	shutdownTimeout time.Duration
	checkInterval   time.Duration
}

// NewEmbeddedNATSService wraps server. A non-positive timeout means 10s.
func NewEmbeddedNATSService(server EmbeddedServer, shutdownTimeout time.Duration) *EmbeddedNATSService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EmbeddedNATSService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		checkInterval:   5 * time.Second,
	}
}

// Serve implements suture.Service.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		if !s.server.Running() {
			return fmt.Errorf("embedded nats server stopped: %w", suture.ErrDoNotRestart)
		}
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("embedded nats shutdown: %w", err)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *EmbeddedNATSService) String() string {
	return "embedded-nats"
}
