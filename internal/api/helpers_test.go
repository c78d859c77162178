// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/auth"
	"github.com/tomtom215/tracklog/internal/botfilter"
	"github.com/tomtom215/tracklog/internal/logging"
	"github.com/tomtom215/tracklog/internal/websocket"
)

const (
	testSecret = "this_is_a_very_long_secret_key_with_32_plus_characters"
	browserUA  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/126.0 Safari/537.36"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type testServer struct {
	router     *Router
	handler    http.Handler
	store      *applog.MemoryStore
	side       *applog.RecordingSideChannel
	hub        *websocket.Hub
	adminToken string
	userToken  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := applog.NewMemoryStore(1000)
	side := applog.NewRecordingSideChannel()
	logger := applog.NewLogger(applog.Config{Enabled: true}, store, applog.WithSideChannel(side))

	resolver, err := auth.NewJWTResolver(testSecret)
	if err != nil {
		t.Fatalf("NewJWTResolver() failed: %v", err)
	}

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.RunWithContext(ctx) }()
	t.Cleanup(cancel)

	fp := botfilter.NewFingerprinter("test-secret")
	router := NewRouter(Config{
		CORSOrigins: []string{"*"},
		Dispatcher:  "channel",
	}, Dependencies{
		AppLogger:    logger,
		Store:        store,
		Hub:          hub,
		BotFilter:    botfilter.New(botfilter.Config{Enabled: true}, fp, logging.NewTestLogger(io.Discard)),
		Resolver:     resolver,
		StoreCircuit: func() string { return "closed" },
	})
	router.logs.now = func() time.Time { return testNow }
	t.Cleanup(router.Close)

	ts := &testServer{
		router:  router,
		handler: router.Handler(),
		store:   store,
		side:    side,
		hub:     hub,
	}
	ts.adminToken = mustToken(t, resolver, &auth.Identity{UserID: 1, Admin: true})
	ts.userToken = mustToken(t, resolver, &auth.Identity{UserID: 2, SubscriptionStatus: "active"})
	return ts
}

func mustToken(t *testing.T, resolver *auth.JWTResolver, id *auth.Identity) string {
	t.Helper()
	token, err := resolver.GenerateToken(id, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	return token
}

// do sends a request through the full middleware stack.
func (ts *testServer) do(t *testing.T, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("User-Agent", browserUA)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

// seed inserts records directly into the store, bypassing the logger.
func (ts *testServer) seed(t *testing.T, records ...applog.Record) []applog.Record {
	t.Helper()
	for i := range records {
		if err := ts.store.Insert(context.Background(), &records[i]); err != nil {
			t.Fatalf("seed insert: %v", err)
		}
	}
	return records
}

func rec(logType applog.LogType, level applog.Level, message string, ago time.Duration) applog.Record {
	return applog.Record{
		LogType:    logType,
		Level:      level,
		Message:    message,
		OccurredAt: testNow.Add(-ago),
	}
}

type listResponse struct {
	Success bool            `json:"success"`
	Data    []applog.Record `json:"data"`
	Meta    *APIMeta        `json:"meta"`
	Error   *APIError       `json:"error"`
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) listResponse {
	t.Helper()
	var out listResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode list %q: %v", w.Body.String(), err)
	}
	return out
}
