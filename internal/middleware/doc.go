// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

/*
Package middleware provides the request observability layers of the HTTP
stack.

All components use the chi middleware signature func(http.Handler)
http.Handler and can be mounted with Router.Use.

Key Components:

  - RequestID: accepts or generates X-Request-ID and stores it in the
    request context for logging
  - RequestLogger: records the outcome of every request. Errors always
    reach the durable log; slow successes do when enabled; everything
    else goes to the side channel only
  - ErrorTracking: records downstream panics with sanitized parameters,
    reports them to the error tracker and re-raises them; flags slow
    requests and 4xx/5xx responses
  - PrometheusMetrics: request count, latency and in-flight gauge keyed
    by chi route pattern
  - Compression: gzip for larger admin responses

Middleware Stack:

The server mounts them in this order:

	r.Use(chimw.Recoverer)
	r.Use(corsHandler)
	r.Use(middleware.ErrorTracking(appLogger, trackingCfg))
	r.Use(botFilter.Handler)
	r.Use(middleware.RequestID)
	r.Use(auth.Identify(resolver))
	r.Use(middleware.RequestLogger(appLogger, requestCfg))
	r.Use(middleware.PrometheusMetrics)
	r.Use(limiter.Handler)

Panics:

RequestLogger and ErrorTracking each record a downstream panic once and
re-raise the original value, so the outer Recoverer still produces the
500 response. Failures inside the middleware itself are recovered and
written to the side channel; they never fail the request.

See Also:

  - internal/applog: the logger both middlewares write through
  - internal/auth: identity resolution
  - internal/botfilter: client fingerprints
*/
package middleware
