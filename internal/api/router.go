// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/auth"
	"github.com/tomtom215/tracklog/internal/botfilter"
	"github.com/tomtom215/tracklog/internal/middleware"
	"github.com/tomtom215/tracklog/internal/ratelimit"
	"github.com/tomtom215/tracklog/internal/websocket"
)

// Config holds the router settings.
type Config struct {
	CORSOrigins []string

	// Dispatcher names the async write backend for the health payload.
	Dispatcher string

	RequestLog    middleware.RequestLogConfig
	ErrorTracking middleware.ErrorTrackingConfig

	// StatsTTL defaults to DefaultStatsTTL.
	StatsTTL time.Duration
}

// Dependencies are the collaborators the router mounts. AppLogger and Store
// are required; the rest are optional and their layer is skipped when nil.
type Dependencies struct {
	AppLogger *applog.Logger
	Store     applog.Store
	Hub       *websocket.Hub
	BotFilter *botfilter.Filter
	Limiter   *ratelimit.Limiter
	Resolver  auth.Resolver

	// StoreCircuit reports the breaker state of the store for /health.
	StoreCircuit func() string
}

// Router assembles the HTTP surface.
type Router struct {
	config Config
	deps   Dependencies
	logs   *LogHandlers
	health *HealthHandlers
}

// NewRouter creates the router. Call Close when the server stops.
func NewRouter(cfg Config, deps Dependencies) *Router {
	if cfg.RequestLog.Resolver == nil {
		cfg.RequestLog.Resolver = deps.Resolver
	}
	if cfg.ErrorTracking.Resolver == nil {
		cfg.ErrorTracking.Resolver = deps.Resolver
	}
	return &Router{
		config: cfg,
		deps:   deps,
		logs:   NewLogHandlers(deps.Store, deps.Hub, cfg.CORSOrigins, cfg.StatsTTL),
		health: NewHealthHandlers(cfg.Dispatcher, deps.StoreCircuit, deps.Hub),
	}
}

// Close releases the handlers' background resources.
func (router *Router) Close() {
	router.logs.Close()
}

// Handler builds the chi router.
//
// The global stack runs outermost first. ErrorTracking sits just inside
// Recoverer so it sees every panic, including ones raised by later layers;
// the bot filter runs before any request id or log record is produced.
func (router *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(router.config.CORSOrigins))
	r.Use(middleware.ErrorTracking(router.deps.AppLogger, router.config.ErrorTracking))
	if router.deps.BotFilter != nil {
		r.Use(router.deps.BotFilter.Handler)
	}
	r.Use(middleware.RequestID)
	r.Use(auth.Identify(router.deps.Resolver))
	r.Use(middleware.RequestLogger(router.deps.AppLogger, router.config.RequestLog))
	r.Use(middleware.PrometheusMetrics)
	if router.deps.Limiter != nil {
		r.Use(router.deps.Limiter.Handler)
	}

	r.Get("/health", router.health.Health)
	r.Get("/up", router.health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/admin/logs", func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Use(middleware.Compression)

		r.Get("/", router.logs.ListLogs)
		r.Get("/stats", router.logs.GetStats)
		r.Get("/export", router.logs.ExportLogs)
		r.Get("/stream", router.logs.StreamLogs)
		r.Get("/{id}", router.logs.GetLog)
	})

	return r
}
