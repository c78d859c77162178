// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tracklog/internal/applog"
)

type testEnv struct {
	logger  *applog.Logger
	store   *applog.MemoryStore
	side    *applog.RecordingSideChannel
	tracker *applog.RecordingTracker
}

// newTestEnv builds a synchronous logger that persists every type and level.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   applog.NewMemoryStore(1000),
		side:    applog.NewRecordingSideChannel(),
		tracker: &applog.RecordingTracker{},
	}
	env.logger = applog.NewLogger(applog.Config{Enabled: true}, env.store,
		applog.WithSideChannel(env.side),
		applog.WithTracker(env.tracker),
	)
	return env
}

func (e *testEnv) records(t *testing.T) []applog.Record {
	t.Helper()
	records, err := e.store.Query(context.Background(), applog.Filter{})
	if err != nil {
		t.Fatalf("query store: %v", err)
	}
	return records
}

func (e *testEnv) recordWithAction(t *testing.T, action string) applog.Record {
	t.Helper()
	for _, r := range e.records(t) {
		if r.Action == action {
			return r
		}
	}
	t.Fatalf("no record with action %q in %+v", action, e.records(t))
	return applog.Record{}
}

func decodeObject(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return out
}

// steppingClock advances by step on every call.
type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newSteppingClock(step time.Duration) *steppingClock {
	return &steppingClock{now: time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC), step: step}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.now
	c.now = c.now.Add(c.step)
	return current
}
