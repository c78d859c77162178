// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package api

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/tomtom215/tracklog/internal/middleware"
)

// corsMaxAge is how long browsers may cache a preflight answer, in seconds.
const corsMaxAge = 86400

// corsOptions describes the read-only admin surface: GET plus preflight,
// and the request id header in both directions.
func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:         corsMaxAge,
	}
}

// CORS returns the cross-origin middleware for origins. It has to be
// installed globally so preflights are answered before routing.
//
// go-chi/cors treats an empty origin list as "allow all"; here an empty
// list means same-origin only and the middleware adds no headers.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(corsOptions(origins))
}
