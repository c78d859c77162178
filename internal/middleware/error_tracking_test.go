// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/auth"
	"github.com/tomtom215/tracklog/internal/botfilter"
)

func newTrackedRouter(et *errorTracker) http.Handler {
	r := chi.NewRouter()
	r.Use(et.middleware)
	r.Use(RequestID)
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/status/{code}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "code") {
		case "503":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	})
	r.Post("/explode", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})
	return r
}

func TestErrorTracking_PanicIsRecordedEverywhere(t *testing.T) {
	env := newTestEnv(t)
	et := newErrorTracker(env.logger, ErrorTrackingConfig{
		Resolver: stubResolver{id: &auth.Identity{UserID: 3}},
	})
	h := newTrackedRouter(et)

	req := httptest.NewRequest(http.MethodPost, "/explode?email=a@b.c&password=hunter2", nil)
	func() {
		defer func() {
			if rec := recover(); rec != "kaboom" {
				t.Errorf("expected original panic value, got %v", rec)
			}
		}()
		h.ServeHTTP(httptest.NewRecorder(), req)
	}()

	side, ok := env.side.Find("Middleware caught error")
	if !ok {
		t.Fatal("expected side channel entry")
	}
	if side.Attrs["error_class"] != "string" || side.Attrs["user_id"] != int64(3) {
		t.Errorf("unexpected side channel attrs %v", side.Attrs)
	}
	params, _ := side.Attrs["params"].(map[string]any)
	if _, leaked := params["password"]; leaked {
		t.Error("password must not be logged")
	}
	if params["email"] != "a@b.c" {
		t.Errorf("expected email param to be kept, got %v", params)
	}

	got := env.recordWithAction(t, "middleware_error")
	if got.LogType != applog.TypeError || got.Level != applog.LevelError {
		t.Errorf("expected error/error, got %s/%s", got.LogType, got.Level)
	}
	if got.Message != "Middleware caught error: kaboom" {
		t.Errorf("unexpected message %q", got.Message)
	}
	if got.UserID == nil || *got.UserID != 3 {
		t.Errorf("expected user id 3, got %v", got.UserID)
	}

	errs := env.tracker.Errors()
	if len(errs) != 1 || errs[0].Error() != "kaboom" {
		t.Errorf("expected one tracked error, got %v", errs)
	}
}

func TestErrorTracking_ErrorResponses(t *testing.T) {
	tests := []struct {
		path      string
		errorType string
		status    float64
	}{
		{path: "/status/403", errorType: "client_error", status: 403},
		{path: "/status/503", errorType: "server_error", status: 503},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			env := newTestEnv(t)
			h := newTrackedRouter(newErrorTracker(env.logger, ErrorTrackingConfig{}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			got := env.recordWithAction(t, "http_error")
			if got.LogType != applog.TypeHTTPError || got.Level != applog.LevelWarning {
				t.Errorf("expected http_error/warning, got %s/%s", got.LogType, got.Level)
			}
			if got.Controller != "/status/{code}" {
				t.Errorf("expected route pattern, got %q", got.Controller)
			}
			ctx := decodeObject(t, got.Context)
			if ctx["error_type"] != tt.errorType || ctx["status"] != tt.status {
				t.Errorf("unexpected context %v", ctx)
			}
		})
	}
}

func TestErrorTracking_SlowRequest(t *testing.T) {
	env := newTestEnv(t)
	et := newErrorTracker(env.logger, ErrorTrackingConfig{})
	et.now = newSteppingClock(6 * time.Second).Now

	newTrackedRouter(et).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	got := env.recordWithAction(t, "slow_request")
	if got.Level != applog.LevelWarning {
		t.Errorf("expected warning, got %s", got.Level)
	}
	if ctx := decodeObject(t, got.Context); ctx["category"] != "performance" {
		t.Errorf("unexpected context %v", ctx)
	}
	if len(env.records(t)) != 1 {
		t.Errorf("expected only the slow request record, got %d", len(env.records(t)))
	}
}

func TestErrorTracking_FastSuccessIsSilent(t *testing.T) {
	env := newTestEnv(t)
	newTrackedRouter(newErrorTracker(env.logger, ErrorTrackingConfig{})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	if n := len(env.records(t)); n != 0 {
		t.Errorf("expected no records, got %d", n)
	}
}

func TestSanitizeParams(t *testing.T) {
	params := url.Values{
		"q":                     {"logs"},
		"Password":              {"secret"},
		"password_confirmation": {"secret"},
		"authenticity_token":    {"abc"},
		"tags":                  {"a", "b"},
		"body":                  {strings.Repeat("x", 1500)},
	}

	got := SanitizeParams(params)

	for _, key := range []string{"Password", "password_confirmation", "authenticity_token"} {
		if _, ok := got[key]; ok {
			t.Errorf("expected %s to be filtered", key)
		}
	}
	if got["q"] != "logs" {
		t.Errorf("expected q to be kept, got %v", got["q"])
	}
	if tags, ok := got["tags"].([]string); !ok || len(tags) != 2 {
		t.Errorf("expected multi-value tags, got %v", got["tags"])
	}
	body, _ := got["body"].(string)
	if len(body) != 1000 || !strings.HasSuffix(body, "...") {
		t.Errorf("expected body truncated to 1000 bytes with ellipsis, got %d bytes", len(body))
	}
}

func TestErrorTracking_EdgeAnswersStayOffTheStore(t *testing.T) {
	env := newTestEnv(t)
	et := newErrorTracker(env.logger, ErrorTrackingConfig{})
	filter := botfilter.New(botfilter.Config{Enabled: true}, botfilter.NewFingerprinter("s"), zerolog.Nop())

	r := chi.NewRouter()
	r.Use(et.middleware)
	r.Use(filter.Handler)
	r.Use(throttleEverything)
	r.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		path      string
		userAgent string
		status    int
	}{
		{path: "/wp-admin/anything.php", userAgent: "sqlmap/1.0 secret-ua", status: http.StatusGone},
		{path: "/dashboard", userAgent: "sqlmap/1.0 secret-ua", status: http.StatusNotFound},
		{path: "/dashboard", userAgent: "Mozilla/5.0", status: http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		for i := 0; i < 10; i++ {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("User-Agent", tt.userAgent)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("%s: expected %d, got %d", tt.path, tt.status, rec.Code)
			}
		}
	}
	if n := env.store.Len(); n != 0 {
		t.Errorf("edge answers produced %d records: %+v", n, env.records(t))
	}
}

func TestErrorTracking_PanicBehindEdgeIsStillRecorded(t *testing.T) {
	env := newTestEnv(t)
	et := newErrorTracker(env.logger, ErrorTrackingConfig{})
	filter := botfilter.New(botfilter.Config{Enabled: true}, botfilter.NewFingerprinter("s"), zerolog.Nop())

	r := chi.NewRouter()
	r.Use(et.middleware)
	r.Use(filter.Handler)
	r.Get("/explode", func(http.ResponseWriter, *http.Request) { panic("kaboom") })

	func() {
		defer func() { _ = recover() }()
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/explode", nil))
	}()
	env.recordWithAction(t, "middleware_error")
}
