// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/auth"
	"github.com/tomtom215/tracklog/internal/botfilter"
)

const (
	// requestContextMaxBytes caps the per-request context payload.
	requestContextMaxBytes = 2048

	// DefaultSlowThreshold applies when RequestLogConfig leaves it zero.
	DefaultSlowThreshold = 800 * time.Millisecond

	subscriptionUnknown = "unknown"
)

// DefaultSkipPrefixes are paths never logged: static assets, probes,
// polling and scraping.
var DefaultSkipPrefixes = []string{"/assets", "/health", "/up", "/dashboard_poll", "/metrics"}

// RequestLogConfig controls RequestLogger.
type RequestLogConfig struct {
	// DBEnabled persists successful requests slower than SlowThreshold.
	// Responses >= 400 are persisted regardless.
	DBEnabled     bool
	SlowThreshold time.Duration

	// Resolver identifies the caller when auth.Identify has not already
	// stored an identity in the request context. Optional.
	Resolver auth.Resolver

	// Fingerprinter replaces the client IP. Without one the IP address is
	// recorded as "unknown".
	Fingerprinter *botfilter.Fingerprinter

	// SkipPrefixes overrides DefaultSkipPrefixes when non-nil.
	SkipPrefixes []string
}

type requestLogger struct {
	logger *applog.Logger
	side   applog.SideChannel
	cfg    RequestLogConfig
	now    func() time.Time
}

// RequestLogger records the outcome of each request through logger.
//
// Status >= 400 is always written with Log. A 2xx/3xx response is written
// as "HTTP request slow" when DBEnabled and the duration reaches
// SlowThreshold; otherwise it only reaches the side channel. A downstream
// panic is logged as http_request_error and re-raised.
func RequestLogger(logger *applog.Logger, cfg RequestLogConfig) func(http.Handler) http.Handler {
	rl := newRequestLogger(logger, cfg)
	return rl.middleware
}

func newRequestLogger(logger *applog.Logger, cfg RequestLogConfig) *requestLogger {
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = DefaultSlowThreshold
	}
	if cfg.SkipPrefixes == nil {
		cfg.SkipPrefixes = DefaultSkipPrefixes
	}
	return &requestLogger{
		logger: logger,
		side:   logger.SideChannel(),
		cfg:    cfg,
		now:    time.Now,
	}
}

func (rl *requestLogger) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.skipped(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := rl.now()
		ctx, edge := botfilter.TrackEdgeResponse(r.Context())
		r = r.WithContext(ctx)
		ww := wrapWriter(w, r)

		defer func() {
			if rec := recover(); rec != nil {
				rl.logPanic(r, rec, rl.now().Sub(start))
				panic(rec)
			}
		}()

		next.ServeHTTP(ww, r)

		// Throttled requests were logged by the limiter.
		if edge.Answered() {
			return
		}
		rl.logOutcome(r, statusOf(ww), rl.now().Sub(start))
	})
}

func (rl *requestLogger) skipped(path string) bool {
	for _, prefix := range rl.cfg.SkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (rl *requestLogger) logOutcome(r *http.Request, status int, duration time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			rl.side.Write(applog.LevelError, "Failed to log request", map[string]any{
				"error": fmt.Sprint(rec),
				"path":  r.URL.Path,
			})
		}
	}()

	entry := rl.baseEntry(r)
	entry.LogType = string(applog.TypeHTTPRequest)
	entry.Level = string(applog.LevelForStatus(status))
	entry.Message = "HTTP request completed"
	entry.Action = "http_request_completed"
	entry.Context = applog.Sanitize(map[string]any{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status":      status,
		"duration_ms": durationMS(duration),
	}, requestContextMaxBytes)

	switch {
	case status >= http.StatusBadRequest:
		rl.logger.Log(r.Context(), entry)
	case rl.cfg.DBEnabled && duration >= rl.cfg.SlowThreshold:
		entry.Level = string(applog.LevelWarning)
		entry.Message = "HTTP request slow"
		rl.logger.Log(r.Context(), entry)
	default:
		rl.emit(entry)
	}
}

func (rl *requestLogger) logPanic(r *http.Request, rec any, duration time.Duration) {
	defer func() {
		_ = recover()
	}()

	message := panicMessage(rec)
	entry := rl.baseEntry(r)
	entry.LogType = string(applog.TypeError)
	entry.Level = string(applog.LevelError)
	entry.Message = "HTTP request error: " + message
	entry.Action = "http_request_error"
	entry.Context = applog.Sanitize(map[string]any{
		"error":       message,
		"error_class": fmt.Sprintf("%T", rec),
		"method":      r.Method,
		"path":        r.URL.Path,
		"status":      http.StatusInternalServerError,
		"duration_ms": durationMS(duration),
	}, requestContextMaxBytes)

	rl.logger.Log(r.Context(), entry)
}

// baseEntry fills the fields shared by every request record. The identity
// contributes only id, role and subscription status.
func (rl *requestLogger) baseEntry(r *http.Request) applog.Entry {
	entry := applog.Entry{
		Controller: routePattern(r),
		RequestID:  GetRequestID(r.Context()),
		IPAddress:  rl.fingerprint(r),
	}

	if id := rl.identity(r); id != nil {
		entry.UserID = applog.UserIDPtr(id.UserID)
		status := id.SubscriptionStatus
		if status == "" {
			status = subscriptionUnknown
		}
		entry.Metadata = map[string]any{
			"user_id":             id.UserID,
			"role":                id.Role(),
			"subscription_status": status,
		}
	}
	return entry
}

func (rl *requestLogger) identity(r *http.Request) *auth.Identity {
	if id := auth.FromContext(r.Context()); id != nil {
		return id
	}
	if rl.cfg.Resolver == nil {
		return nil
	}
	id, err := rl.cfg.Resolver.Resolve(r)
	if err != nil {
		return nil
	}
	return id
}

func (rl *requestLogger) fingerprint(r *http.Request) string {
	if rl.cfg.Fingerprinter == nil {
		return botfilter.UnknownFingerprint
	}
	return rl.cfg.Fingerprinter.Fingerprint(r)
}

// emit writes a routine request to the side channel only.
func (rl *requestLogger) emit(entry applog.Entry) {
	attrs := map[string]any{
		"log_type":   entry.LogType,
		"action":     entry.Action,
		"controller": entry.Controller,
		"request_id": entry.RequestID,
		"ip_address": entry.IPAddress,
		"context":    entry.Context,
	}
	if entry.UserID != nil {
		attrs["user_id"] = *entry.UserID
	}
	if entry.Metadata != nil {
		attrs["metadata"] = entry.Metadata
	}
	rl.side.Write(applog.NormalizeLevel(entry.Level), entry.Message, attrs)
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func panicMessage(rec any) string {
	if err, ok := rec.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(rec)
}
