// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

/*
Package metrics provides Prometheus metrics for the observability pipeline.

Metrics are registered on the default registry through promauto and exposed
at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

HTTP:
  - http_requests_total{method, route, status}
  - http_request_duration_seconds{method, route}
  - http_active_requests

Log pipeline:
  - applog_records_total{mode, log_type}: records handed to the store
  - applog_records_filtered_total{reason}: disabled or allow_list
  - applog_records_dropped_total{reason}: queue_full, write_failed, decode_failed
  - applog_failures_total{stage}: recovered failures inside Log
  - applog_dispatcher_queue_depth{backend}
  - applog_store_circuit_state{store}: 0 closed, 1 half-open, 2 open

Request filtering:
  - botfilter_blocked_total{tier}
  - ratelimit_throttled_total{rule}
  - ratelimit_counter_errors_total

Retention and live tail:
  - applog_retention_deleted_total{log_type}
  - applog_retention_duration_seconds
  - websocket_connections_active
*/
package metrics
