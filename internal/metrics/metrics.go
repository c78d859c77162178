// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 0.8, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// Log Pipeline Metrics
	LogRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applog_records_total",
			Help: "Total number of log records written to the store",
		},
		[]string{"mode", "log_type"}, // mode: "sync", "async"
	)

	LogRecordsFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applog_records_filtered_total",
			Help: "Log records routed to the side channel instead of the store",
		},
		[]string{"reason"}, // "disabled", "allow_list"
	)

	LogRecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applog_records_dropped_total",
			Help: "Log records dropped without being persisted",
		},
		[]string{"reason"}, // "queue_full", "write_failed", "decode_failed", "enqueue_failed"
	)

	LogFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applog_failures_total",
			Help: "Failures recovered inside the log write path",
		},
		[]string{"stage"},
	)

	LogDispatcherQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "applog_dispatcher_queue_depth",
			Help: "Records waiting in the async dispatcher",
		},
		[]string{"backend"},
	)

	LogStoreCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "applog_store_circuit_state",
			Help: "Store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"store"},
	)

	// Request Filtering Metrics
	BotFilterBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botfilter_blocked_total",
			Help: "Requests rejected by the bot filter",
		},
		[]string{"tier"}, // "fast", "slow"
	)

	RateLimitThrottled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_throttled_total",
			Help: "Requests throttled by the rate limiter",
		},
		[]string{"rule"},
	)

	RateLimitCounterErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ratelimit_counter_errors_total",
			Help: "Rate limit counter failures (requests were allowed)",
		},
	)

	// Retention Metrics
	RetentionDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applog_retention_deleted_total",
			Help: "Log records deleted by the retention sweep",
		},
		[]string{"log_type"},
	)

	RetentionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "applog_retention_duration_seconds",
			Help:    "Duration of retention sweeps in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	// WebSocket Metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of live tail WebSocket connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request metric
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight HTTP requests
func TrackActiveRequest(inc bool) {
	if inc {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}

// RecordLogWrite records a record handed to the store
func RecordLogWrite(mode, logType string) {
	LogRecordsTotal.WithLabelValues(mode, logType).Inc()
}

// RecordLogFiltered records a record kept out of the store
func RecordLogFiltered(reason string) {
	LogRecordsFiltered.WithLabelValues(reason).Inc()
}

// RecordLogDropped records a record that was lost
func RecordLogDropped(reason string) {
	LogRecordsDropped.WithLabelValues(reason).Inc()
}

// RecordLogFailure records a recovered failure in the write path
func RecordLogFailure(stage string) {
	LogFailures.WithLabelValues(stage).Inc()
}

// SetQueueDepth reports the dispatcher backlog for a backend
func SetQueueDepth(backend string, depth int) {
	LogDispatcherQueueDepth.WithLabelValues(backend).Set(float64(depth))
}

// SetCircuitState reports a store circuit breaker state
func SetCircuitState(store string, state int) {
	LogStoreCircuitState.WithLabelValues(store).Set(float64(state))
}

// RecordBotBlock records a request rejected by the bot filter
func RecordBotBlock(tier string) {
	BotFilterBlocked.WithLabelValues(tier).Inc()
}

// RecordThrottle records a request throttled by a rate limit rule
func RecordThrottle(rule string) {
	RateLimitThrottled.WithLabelValues(rule).Inc()
}

// RecordCounterError records a rate limit counter failure
func RecordCounterError() {
	RateLimitCounterErrors.Inc()
}

// RecordRetention records the outcome of one retention sweep
func RecordRetention(perType map[string]int64, duration time.Duration) {
	for logType, n := range perType {
		RetentionDeleted.WithLabelValues(logType).Add(float64(n))
	}
	RetentionDuration.Observe(duration.Seconds())
}
