// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/tracklog/internal/logging"
	"github.com/tomtom215/tracklog/internal/metrics"
)

// Logger is the single ingestion point for durable log records.
//
// Log never panics and never returns an error: every failure is reported to
// the side channel and the error tracker, then swallowed.
type Logger struct {
	config     Config
	store      Store
	dispatcher Dispatcher
	side       SideChannel
	tracker    ErrorTracker
	now        func() time.Time

	dropWarning rate.Sometimes
}

// Option configures a Logger.
type Option func(*Logger)

// WithDispatcher sets the async backend. Without one, async mode falls
// back to inline writes.
func WithDispatcher(d Dispatcher) Option {
	return func(l *Logger) { l.dispatcher = d }
}

// WithSideChannel replaces the default zerolog side channel.
func WithSideChannel(s SideChannel) Option {
	return func(l *Logger) { l.side = s }
}

// WithTracker sets the external error tracker.
func WithTracker(t ErrorTracker) Option {
	return func(l *Logger) { l.tracker = t }
}

// WithClock overrides time.Now (for testing).
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// NewLogger creates a Logger writing to store.
func NewLogger(config Config, store Store, opts ...Option) *Logger {
	config.normalize()
	l := &Logger{
		config:      config,
		store:       store,
		side:        NewZerologSideChannel(logging.WithComponent("applog")),
		tracker:     NopTracker{},
		now:         time.Now,
		dropWarning: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the logger configuration.
func (l *Logger) Config() Config {
	return l.config
}

// SideChannel returns the operational log sink records are mirrored to.
func (l *Logger) SideChannel() SideChannel {
	return l.side
}

// Tracker returns the external error tracker.
func (l *Logger) Tracker() ErrorTracker {
	return l.tracker
}

// Log normalizes, bounds and persists one entry.
//
// It returns nil when the entry was not persisted (logging disabled, not on
// the allow-list, or a failure). In async mode the returned record has not
// been written yet and its ID is empty.
func (l *Logger) Log(ctx context.Context, entry Entry) (out *Record) {
	defer func() {
		if r := recover(); r != nil {
			l.reportFailure(ctx, "panic", fmt.Errorf("log write panicked: %v", r), entryAttributes(&entry))
			out = nil
		}
	}()

	record := l.buildRecord(ctx, &entry)

	if !l.config.Enabled {
		metrics.RecordLogFiltered("disabled")
		if record.Level.AtLeastWarning() {
			l.side.Write(record.Level, record.Message, record.Attributes())
		}
		return nil
	}

	if !l.config.Allowed(record.LogType, record.Level) {
		metrics.RecordLogFiltered("allow_list")
		l.side.Write(record.Level, record.Message, record.Attributes())
		return nil
	}

	if l.config.Async && l.dispatcher != nil {
		return l.enqueue(ctx, record)
	}
	return l.insert(ctx, record)
}

// enqueue hands a copy to the dispatcher so the worker never shares memory
// with the record returned to the caller.
func (l *Logger) enqueue(ctx context.Context, record *Record) *Record {
	queued := *record
	if err := l.dispatcher.Enqueue(&queued); err != nil {
		if errors.Is(err, ErrQueueFull) {
			metrics.RecordLogDropped("queue_full")
			l.dropWarning.Do(func() {
				l.side.Write(LevelWarning, "Log dispatcher queue full, dropping records", map[string]any{
					"dispatcher": l.dispatcher.Name(),
					"log_type":   string(record.LogType),
				})
			})
			return nil
		}
		metrics.RecordLogDropped("enqueue_failed")
		l.reportFailure(ctx, "enqueue", err, record.Attributes())
		return nil
	}
	metrics.RecordLogWrite("async", string(record.LogType))
	return record
}

func (l *Logger) insert(ctx context.Context, record *Record) *Record {
	if l.store == nil {
		l.reportFailure(ctx, "persist", errors.New("no log store configured"), record.Attributes())
		return nil
	}

	// The write outlives a canceled request so aborted requests still log.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.config.WriteTimeout)
	defer cancel()

	if err := l.store.Insert(writeCtx, record); err != nil {
		l.reportFailure(ctx, "persist", fmt.Errorf("insert log record: %w", err), record.Attributes())
		return nil
	}
	metrics.RecordLogWrite("sync", string(record.LogType))
	return record
}

// buildRecord applies normalization and size bounds.
func (l *Logger) buildRecord(ctx context.Context, e *Entry) *Record {
	maxBytes := l.config.MaxBytes

	message := TruncateBytes(e.Message, maxBytes)
	if strings.TrimSpace(message) == "" {
		message = MissingMessage
	}

	requestID := e.RequestID
	if requestID == "" && ctx != nil {
		requestID = logging.RequestIDFromContext(ctx)
	}

	return &Record{
		LogType:    NormalizeType(e.LogType),
		Level:      NormalizeLevel(e.Level),
		Message:    message,
		UserID:     e.UserID,
		Action:     TruncateBytes(e.Action, descriptorMaxBytes),
		Controller: TruncateBytes(e.Controller, descriptorMaxBytes),
		RequestID:  TruncateBytes(requestID, descriptorMaxBytes),
		IPAddress:  TruncateBytes(e.IPAddress, descriptorMaxBytes),
		Context:    SanitizeJSON(e.Context, maxBytes),
		Metadata:   SanitizeJSON(e.Metadata, maxBytes),
		OccurredAt: l.now().UTC(),
	}
}

// reportFailure sends a write-path failure to the side channel and the
// error tracker. It must not panic itself.
func (l *Logger) reportFailure(ctx context.Context, stage string, err error, attrs map[string]any) {
	defer func() {
		_ = recover()
	}()

	metrics.RecordLogFailure(stage)

	if attrs == nil {
		attrs = make(map[string]any)
	}
	attrs["error"] = err.Error()
	attrs["stage"] = stage
	l.side.Write(LevelError, "Failed to write log record", attrs)

	if l.tracker != nil {
		l.tracker.Capture(ctx, err, attrs)
	}
}

// entryAttributes dumps raw entry fields when no record could be built.
// Payloads are bounded so the dump itself stays small.
func entryAttributes(e *Entry) map[string]any {
	attrs := map[string]any{
		"log_type": e.LogType,
		"level":    e.Level,
		"message":  TruncateBytes(e.Message, 1000),
	}
	if e.UserID != nil {
		attrs["user_id"] = *e.UserID
	}
	if e.Action != "" {
		attrs["action"] = TruncateBytes(e.Action, descriptorMaxBytes)
	}
	if e.RequestID != "" {
		attrs["request_id"] = TruncateBytes(e.RequestID, descriptorMaxBytes)
	}
	return attrs
}
