// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/tracklog/internal/metrics"
)

// Dispatcher errors.
var (
	ErrQueueFull        = errors.New("log dispatcher queue full")
	ErrDispatcherClosed = errors.New("log dispatcher closed")
)

// Dispatcher accepts records for deferred persistence. Enqueue must never
// block the caller. Delivery is best effort: a failed write is logged to
// the side channel and dropped, never retried.
type Dispatcher interface {
	Enqueue(r *Record) error

	// Name identifies the backend for health output and metrics.
	Name() string
}

// recordWriter performs the single insert attempt shared by every backend.
type recordWriter struct {
	store   Store
	side    SideChannel
	timeout time.Duration
}

func newRecordWriter(store Store, side SideChannel, timeout time.Duration) *recordWriter {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &recordWriter{store: store, side: side, timeout: timeout}
}

// write inserts r once. Failures go to the side channel.
func (w *recordWriter) write(ctx context.Context, r *Record) {
	defer func() {
		if p := recover(); p != nil {
			metrics.RecordLogDropped("write_failed")
			attrs := r.Attributes()
			attrs["error"] = fmt.Sprint(p)
			w.side.Write(LevelError, "Log worker panicked writing record", attrs)
		}
	}()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	if err := w.store.Insert(writeCtx, r); err != nil {
		metrics.RecordLogDropped("write_failed")
		attrs := r.Attributes()
		attrs["error"] = err.Error()
		w.side.Write(LevelError, "Failed to write log record", attrs)
	}
}

// ChannelDispatcherConfig configures ChannelDispatcher.
type ChannelDispatcherConfig struct {
	BufferSize   int
	Workers      int
	WriteTimeout time.Duration
}

// ChannelDispatcher is a bounded in-process queue drained by a small
// worker pool. It implements suture.Service.
type ChannelDispatcher struct {
	records chan *Record
	writer  *recordWriter
	workers int
	closed  atomic.Bool
	pending atomic.Int64
}

// NewChannelDispatcher creates a dispatcher writing to store.
func NewChannelDispatcher(cfg ChannelDispatcherConfig, store Store, side SideChannel) *ChannelDispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	return &ChannelDispatcher{
		records: make(chan *Record, cfg.BufferSize),
		writer:  newRecordWriter(store, side, cfg.WriteTimeout),
		workers: cfg.Workers,
	}
}

// Name implements Dispatcher.
func (d *ChannelDispatcher) Name() string { return "channel" }

// Enqueue implements Dispatcher.
func (d *ChannelDispatcher) Enqueue(r *Record) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	// Count before the send so a worker can never decrement first.
	depth := d.pending.Add(1)
	select {
	case d.records <- r:
		metrics.SetQueueDepth("channel", int(depth))
		return nil
	default:
		d.pending.Add(-1)
		return ErrQueueFull
	}
}

// Pending returns the number of queued records.
func (d *ChannelDispatcher) Pending() int {
	return len(d.records)
}

// Serve runs the workers until ctx is canceled, then drains what is left.
func (d *ChannelDispatcher) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for range d.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	wg.Wait()
	d.drain(ctx)
	return ctx.Err()
}

func (d *ChannelDispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-d.records:
			d.writeOne(ctx, r)
		}
	}
}

// drain writes the remaining buffered records after shutdown begins.
func (d *ChannelDispatcher) drain(ctx context.Context) {
	for {
		select {
		case r := <-d.records:
			d.writeOne(ctx, r)
		default:
			return
		}
	}
}

func (d *ChannelDispatcher) writeOne(ctx context.Context, r *Record) {
	metrics.SetQueueDepth("channel", int(d.pending.Add(-1)))
	d.writer.write(ctx, r)
}

// Close rejects further records. Queued records are still written by Serve.
func (d *ChannelDispatcher) Close() error {
	d.closed.Store(true)
	return nil
}

// String implements fmt.Stringer for suture logging.
func (d *ChannelDispatcher) String() string {
	return "applog-channel-dispatcher"
}
