// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

/*
Package api provides the HTTP surface of Tracklog: the chi router with the
full observability middleware stack, probes, Prometheus metrics and the
admin log endpoints.

Routes:

	GET /health                      liveness with dispatcher mode
	GET /up                          alias of /health
	GET /metrics                     Prometheus exposition
	GET /api/v1/admin/logs           filtered, paginated records
	GET /api/v1/admin/logs/{id}      one record
	GET /api/v1/admin/logs/stats     dashboard totals, cached 30s
	GET /api/v1/admin/logs/export    CSV export, at most 10000 rows
	GET /api/v1/admin/logs/stream    WebSocket live tail

Admin routes require an identity with the admin role and are gzip
compressed when the client accepts it.

List and export accept type, level (comma separated or repeated),
user_id, since (15m 1h 6h 24h 3d 7d 30d), from and to (RFC 3339), action,
controller, q (message substring), ip and request_id. Unknown values
answer 400 with VALIDATION_FAILED rather than being ignored.

Response Format:

JSON endpoints share one envelope:

	{
	  "success": true,
	  "data": [...],
	  "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 3,
	           "pagination": {"total": 120, "count": 50, "page": 1,
	                          "per_page": 50, "has_more": true}}
	}
*/
package api
