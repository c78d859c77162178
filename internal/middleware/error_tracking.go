// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/auth"
	"github.com/tomtom215/tracklog/internal/botfilter"
)

const (
	// DefaultSlowRequestThreshold marks a request as a performance problem.
	DefaultSlowRequestThreshold = 5 * time.Second

	errorMessageMaxBytes = 1000
	paramValueMaxBytes   = 1000
	userAgentMaxBytes    = 255
)

// filteredParams are never logged.
var filteredParams = map[string]struct{}{
	"password":              {},
	"password_confirmation": {},
	"current_password":      {},
	"authenticity_token":    {},
	"token":                 {},
	"stripe_signature":      {},
}

// ErrorTrackingConfig controls ErrorTracking.
type ErrorTrackingConfig struct {
	// SlowThreshold defaults to DefaultSlowRequestThreshold.
	SlowThreshold time.Duration

	Fingerprinter *botfilter.Fingerprinter

	// Resolver identifies the user of a failed request. ErrorTracking sits
	// outside auth.Identify, so the context has no identity yet. Optional.
	Resolver auth.Resolver
}

type errorTracker struct {
	logger  *applog.Logger
	side    applog.SideChannel
	tracker applog.ErrorTracker
	cfg     ErrorTrackingConfig
	now     func() time.Time
}

// ErrorTracking records panics, slow requests and error responses.
//
// A downstream panic is written to the side channel, persisted as a
// middleware_error record and sent to the error tracker, then re-raised
// with its original value. Responses produced by the bot filter or rate
// limiter are not recorded.
func ErrorTracking(logger *applog.Logger, cfg ErrorTrackingConfig) func(http.Handler) http.Handler {
	et := newErrorTracker(logger, cfg)
	return et.middleware
}

func newErrorTracker(logger *applog.Logger, cfg ErrorTrackingConfig) *errorTracker {
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = DefaultSlowRequestThreshold
	}
	tracker := logger.Tracker()
	if tracker == nil {
		tracker = applog.NopTracker{}
	}
	return &errorTracker{
		logger:  logger,
		side:    logger.SideChannel(),
		tracker: tracker,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (et *errorTracker) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := et.now()
		ctx, edge := botfilter.TrackEdgeResponse(r.Context())
		r = r.WithContext(ctx)
		ww := wrapWriter(w, r)

		defer func() {
			if rec := recover(); rec != nil {
				et.recordPanic(r, rec, et.now().Sub(start))
				panic(rec)
			}
		}()

		next.ServeHTTP(ww, r)

		// Blocked requests and throttled bursts were already logged by the
		// filter or limiter and must not become store writes.
		if edge.Answered() {
			return
		}
		et.recordOutcome(r, statusOf(ww), et.now().Sub(start))
	})
}

func (et *errorTracker) recordOutcome(r *http.Request, status int, duration time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			et.side.Write(applog.LevelError, "Error tracking failed", map[string]any{
				"error": fmt.Sprint(rec),
				"path":  r.URL.Path,
			})
		}
	}()

	if duration > et.cfg.SlowThreshold {
		et.logger.Log(r.Context(), applog.Entry{
			LogType:    string(applog.TypeWarning),
			Level:      string(applog.LevelWarning),
			Message:    "Slow request detected",
			Action:     "slow_request",
			Controller: routePattern(r),
			IPAddress:  et.fingerprint(r),
			Context: map[string]any{
				"category":    "performance",
				"method":      r.Method,
				"path":        r.URL.Path,
				"duration_ms": durationMS(duration),
				"user_agent":  applog.TruncateBytes(r.UserAgent(), userAgentMaxBytes),
			},
		})
	}

	if status >= http.StatusBadRequest {
		et.logger.Log(r.Context(), applog.Entry{
			LogType:    string(applog.TypeHTTPError),
			Level:      string(applog.LevelWarning),
			Message:    "HTTP error response: " + strconv.Itoa(status),
			Action:     "http_error",
			Controller: routePattern(r),
			IPAddress:  et.fingerprint(r),
			Context: map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"duration_ms": durationMS(duration),
				"user_agent":  applog.TruncateBytes(r.UserAgent(), userAgentMaxBytes),
				"error_type":  errorType(status),
			},
		})
	}
}

func (et *errorTracker) recordPanic(r *http.Request, rec any, duration time.Duration) {
	defer func() {
		_ = recover()
	}()

	class := fmt.Sprintf("%T", rec)
	message := applog.TruncateBytes(panicMessage(rec), errorMessageMaxBytes)
	fingerprint := et.fingerprint(r)
	requestID := GetRequestID(r.Context())

	var userID *int64
	if id := et.identity(r); id != nil {
		userID = applog.UserIDPtr(id.UserID)
	}

	attrs := map[string]any{
		"component":   "middleware",
		"error_type":  "request_processing_error",
		"error_class": class,
		"error":       message,
		"method":      r.Method,
		"path":        r.URL.Path,
		"duration_ms": durationMS(duration),
		"request_id":  requestID,
		"ip_address":  fingerprint,
		"params":      SanitizeParams(requestParams(r)),
	}
	if userID != nil {
		attrs["user_id"] = *userID
	}
	et.side.Write(applog.LevelError, "Middleware caught error", attrs)

	et.logger.Log(r.Context(), applog.Entry{
		LogType:    string(applog.TypeError),
		Level:      string(applog.LevelError),
		Message:    "Middleware caught error: " + message,
		UserID:     userID,
		Action:     "middleware_error",
		Controller: routePattern(r),
		RequestID:  requestID,
		IPAddress:  fingerprint,
		Context: map[string]any{
			"error_class": class,
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": durationMS(duration),
			"params":      attrs["params"],
		},
	})

	err, ok := rec.(error)
	if !ok {
		err = errors.New(message)
	}
	et.tracker.Capture(r.Context(), err, attrs)
}

func (et *errorTracker) identity(r *http.Request) *auth.Identity {
	if id := auth.FromContext(r.Context()); id != nil {
		return id
	}
	if et.cfg.Resolver == nil {
		return nil
	}
	id, err := et.cfg.Resolver.Resolve(r)
	if err != nil {
		return nil
	}
	return id
}

func (et *errorTracker) fingerprint(r *http.Request) string {
	if et.cfg.Fingerprinter == nil {
		return botfilter.UnknownFingerprint
	}
	return et.cfg.Fingerprinter.Fingerprint(r)
}

func errorType(status int) string {
	switch {
	case status >= 400 && status < 500:
		return "client_error"
	case status >= 500 && status < 600:
		return "server_error"
	default:
		return "unknown_error"
	}
}

// requestParams merges query parameters with an already parsed form. The
// body is never read here.
func requestParams(r *http.Request) url.Values {
	params := r.URL.Query()
	for key, values := range r.PostForm {
		params[key] = append(params[key], values...)
	}
	return params
}

// SanitizeParams drops credential-like keys and shortens long values.
func SanitizeParams(params url.Values) map[string]any {
	out := make(map[string]any, len(params))
	for key, values := range params {
		if _, filtered := filteredParams[strings.ToLower(key)]; filtered {
			continue
		}
		trimmed := make([]string, len(values))
		for i, v := range values {
			if len(v) > paramValueMaxBytes {
				v = applog.TruncateBytes(v, paramValueMaxBytes-3) + "..."
			}
			trimmed[i] = v
		}
		if len(trimmed) == 1 {
			out[key] = trimmed[0]
		} else {
			out[key] = trimmed
		}
	}
	return out
}
