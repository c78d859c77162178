// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"context"
	"fmt"
	"time"
)

// Details carries the optional descriptors accepted by the helper methods.
type Details struct {
	UserID     *int64
	Action     string
	Controller string
	RequestID  string
	IPAddress  string
	Context    map[string]any
	Metadata   map[string]any
}

// entry builds an Entry from d, merging extra context keys over d.Context.
func (d Details) entry(logType LogType, level Level, message string, extra map[string]any) Entry {
	var ctxData any
	switch {
	case len(extra) == 0 && d.Context == nil:
		ctxData = nil
	case len(extra) == 0:
		ctxData = d.Context
	default:
		merged := make(map[string]any, len(d.Context)+len(extra))
		for k, v := range d.Context {
			merged[k] = v
		}
		for k, v := range extra {
			merged[k] = v
		}
		ctxData = merged
	}

	var metadata any
	if d.Metadata != nil {
		metadata = d.Metadata
	}

	return Entry{
		LogType:    string(logType),
		Level:      string(level),
		Message:    message,
		UserID:     d.UserID,
		Action:     d.Action,
		Controller: d.Controller,
		RequestID:  d.RequestID,
		IPAddress:  d.IPAddress,
		Context:    ctxData,
		Metadata:   metadata,
	}
}

// LogError records err at error level and forwards it to the error tracker.
func (l *Logger) LogError(ctx context.Context, err error, d Details) *Record {
	if err == nil {
		return nil
	}
	class := fmt.Sprintf("%T", err)
	if l.tracker != nil {
		l.tracker.Capture(ctx, err, map[string]any{"error_class": class, "action": d.Action})
	}
	return l.Log(ctx, d.entry(TypeError, LevelError, err.Error(), map[string]any{
		"error_class": class,
	}))
}

// LogInfo records a system message at info level.
func (l *Logger) LogInfo(ctx context.Context, message string, d Details) *Record {
	return l.Log(ctx, d.entry(TypeSystem, LevelInfo, message, nil))
}

// LogWarning records a system message at warning level.
func (l *Logger) LogWarning(ctx context.Context, message string, d Details) *Record {
	return l.Log(ctx, d.entry(TypeSystem, LevelWarning, message, nil))
}

// LogHTTPRequest records one completed request. The level follows the
// status code.
func (l *Logger) LogHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration, d Details) *Record {
	if d.Action == "" {
		d.Action = "http_request_completed"
	}
	return l.Log(ctx, d.entry(TypeHTTPRequest, LevelForStatus(status), "HTTP request completed", map[string]any{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}))
}

// LogUserAction records something a user did.
func (l *Logger) LogUserAction(ctx context.Context, userID int64, action, message string, d Details) *Record {
	d.UserID = UserIDPtr(userID)
	d.Action = action
	return l.Log(ctx, d.entry(TypeUserAction, LevelInfo, message, nil))
}

// LogSlowQuery records a database query that exceeded its budget.
func (l *Logger) LogSlowQuery(ctx context.Context, query string, duration time.Duration, d Details) *Record {
	if d.Action == "" {
		d.Action = "slow_query"
	}
	return l.Log(ctx, d.entry(TypeDatabaseQuery, LevelWarning, "Slow database query", map[string]any{
		"query":       TruncateBytes(query, 1000),
		"duration_ms": duration.Milliseconds(),
	}))
}
