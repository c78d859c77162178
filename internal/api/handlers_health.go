// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/tracklog/internal/websocket"
)

// HealthStatus is the liveness payload.
type HealthStatus struct {
	Status string `json:"status"`

	// Dispatcher is the async write backend, or "sync" when records are
	// written on the request path.
	Dispatcher string `json:"dispatcher"`

	// StoreCircuit is the breaker state of the log store, when one wraps it.
	StoreCircuit string `json:"store_circuit,omitempty"`

	LiveTailClients int     `json:"live_tail_clients"`
	Uptime          float64 `json:"uptime_seconds"`
}

// HealthHandlers serves /health and /up.
type HealthHandlers struct {
	dispatcher   string
	storeCircuit func() string
	hub          *websocket.Hub
	startTime    time.Time
}

// NewHealthHandlers creates the handlers. storeCircuit and hub may be nil.
func NewHealthHandlers(dispatcher string, storeCircuit func() string, hub *websocket.Hub) *HealthHandlers {
	return &HealthHandlers{
		dispatcher:   dispatcher,
		storeCircuit: storeCircuit,
		hub:          hub,
		startTime:    time.Now(),
	}
}

// Health handles GET /health and GET /up
// The process is live whenever it can answer; an open store circuit is
// reported but does not fail the probe because records still reach the
// side channel.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:     "ok",
		Dispatcher: h.dispatcher,
		Uptime:     time.Since(h.startTime).Seconds(),
	}
	if h.storeCircuit != nil {
		status.StoreCircuit = h.storeCircuit()
	}
	if h.hub != nil {
		status.LiveTailClients = h.hub.GetClientCount()
	}
	NewResponseWriter(w, r).Success(status)
}
