// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package websocket

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/logging"
)

// ServeWS upgrades the request and attaches a live tail client to hub.
// allowedOrigins lists accepted Origin values; "*" accepts any. Requests
// without an Origin header (non-browser clients) are always accepted.
func ServeWS(hub *Hub, allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := streamFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response.
			logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := NewClient(hub, conn, filter)
		if !hub.join(client) {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			_ = conn.Close()
			return
		}
		client.Start()
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// streamFilter reads the type and level query parameters. Unknown values
// are rejected so a typo cannot silently widen the stream to everything.
func streamFilter(r *http.Request) (applog.Filter, error) {
	var filter applog.Filter
	q := r.URL.Query()

	for _, v := range splitList(q.Get("type")) {
		t := applog.LogType(v)
		if !t.Valid() {
			return filter, fmt.Errorf("unknown log type %q", v)
		}
		filter.Types = append(filter.Types, t)
	}
	for _, v := range splitList(q.Get("level")) {
		l := applog.Level(v)
		if !l.Valid() {
			return filter, fmt.Errorf("unknown level %q", v)
		}
		filter.Levels = append(filter.Levels, l)
	}
	return filter, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
