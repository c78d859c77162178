// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-chi/httprate"
)

// Counter stores per-key request counts in fixed windows.
type Counter interface {
	// IncrementAndGet atomically counts one request for key in the window
	// containing now and returns that window's count, this request included.
	IncrementAndGet(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
}

// windowStart returns the start of the fixed window containing now. Windows
// are aligned to the Unix epoch so every instance agrees on the boundaries.
func windowStart(now time.Time, window time.Duration) time.Time {
	ns := now.UnixNano()
	return time.Unix(0, ns-ns%int64(window)).UTC()
}

// windowEnd is when the window containing now resets.
func windowEnd(now time.Time, window time.Duration) time.Time {
	return windowStart(now, window).Add(window)
}

// MemoryCounter implements Counter in process on top of httprate's local
// limit counter. One httprate counter is kept per window length.
type MemoryCounter struct {
	mu       sync.Mutex
	counters map[time.Duration]httprate.LimitCounter
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counters: make(map[time.Duration]httprate.LimitCounter)}
}

// IncrementAndGet implements Counter.
func (c *MemoryCounter) IncrementAndGet(_ context.Context, key string, window time.Duration, now time.Time) (int, error) {
	if window <= 0 {
		return 0, fmt.Errorf("invalid window %v", window)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	counter, ok := c.counters[window]
	if !ok {
		counter = httprate.NewLocalLimitCounter(window)
		c.counters[window] = counter
	}

	current := windowStart(now, window)
	if err := counter.Increment(key, current); err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	curr, _, err := counter.Get(key, current, current.Add(-window))
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return curr, nil
}
