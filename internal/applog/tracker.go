// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// ErrorTracker forwards failures to an external error-tracking service.
type ErrorTracker interface {
	Capture(ctx context.Context, err error, extras map[string]any)
}

// NopTracker discards everything.
type NopTracker struct{}

// Capture implements ErrorTracker.
func (NopTracker) Capture(context.Context, error, map[string]any) {}

// SentryTracker reports errors to Sentry through a dedicated hub, so the
// process-global Sentry client stays untouched.
type SentryTracker struct {
	hub *sentry.Hub
}

// NewSentryTracker creates a tracker for dsn.
func NewSentryTracker(dsn, environment, release string) (*SentryTracker, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, fmt.Errorf("create sentry client: %w", err)
	}
	return &SentryTracker{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Capture implements ErrorTracker.
func (s *SentryTracker) Capture(_ context.Context, err error, extras map[string]any) {
	if err == nil {
		return
	}
	hub := s.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		if len(extras) > 0 {
			scope.SetExtras(extras)
		}
		hub.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events to be sent.
func (s *SentryTracker) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}

// RecordingTracker keeps captured errors in memory for tests.
type RecordingTracker struct {
	mu     sync.Mutex
	errors []error
}

// Capture implements ErrorTracker.
func (r *RecordingTracker) Capture(_ context.Context, err error, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

// Errors returns a copy of the captured errors.
func (r *RecordingTracker) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errors))
	copy(out, r.errors)
	return out
}
