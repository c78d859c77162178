// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

// Package main is the entry point for the Tracklog server.
//
// Tracklog persists structured application and request logs, filters bot
// traffic, rate limits clients and serves an admin API for browsing,
// exporting and live-tailing the stored records.
//
// # Startup Order
//
//  1. Configuration: .env, config.yaml and environment variables (Koanf v2)
//  2. Process logging: zerolog to stderr
//  3. Log store: DuckDB, PostgreSQL (migrated with goose) or memory,
//     behind a circuit breaker and the live tail hub
//  4. Async dispatcher: channel, watermill, nats or spool
//  5. Error tracking (Sentry) and tracing (OpenTelemetry), both optional
//  6. Bot filter, rate limiter and JWT identity
//  7. Supervisor tree with the HTTP server, dispatcher, hub and retention
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains
// in-flight requests, the dispatcher writes what is still queued, and the
// store is closed last.
//
// # Example Usage
//
//	export DATABASE_DRIVER=postgres
//	export DATABASE_URL=postgres://tracklog:secret@db:5432/tracklog
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export FINGERPRINT_SECRET=$(openssl rand -base64 32)
//	./tracklog
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tomtom215/tracklog/internal/api"
	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/config"
	"github.com/tomtom215/tracklog/internal/logging"
	"github.com/tomtom215/tracklog/internal/middleware"
	"github.com/tomtom215/tracklog/internal/supervisor"
	"github.com/tomtom215/tracklog/internal/supervisor/services"
	"github.com/tomtom215/tracklog/internal/tracing"
	ws "github.com/tomtom215/tracklog/internal/websocket"
)

// shutdownTimeout bounds each supervised service and the final flushes.
const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server stopped with error")
	}
	logging.Info().Msg("Server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("database_driver", cfg.Database.Driver).
		Str("dispatcher", cfg.AppLog.Dispatcher).
		Bool("async", cfg.AppLog.Async).
		Msg("Starting Tracklog")

	hub := ws.NewHub()

	base, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	breaker := applog.NewBreakerStore(cfg.Database.Driver, base, applog.DefaultBreakerSettings())
	store := applog.NewNotifyingStore(breaker, hub)

	side := applog.NewZerologSideChannel(logging.WithComponent("applog"))

	pipe, err := newPipeline(cfg, store, side)
	if err != nil {
		return err
	}
	supervised := false
	defer func() {
		if !supervised {
			pipe.abort()
		}
	}()

	tracker, flushTracker := newTracker(cfg)
	defer flushTracker()

	opts := []applog.Option{
		applog.WithSideChannel(side),
		applog.WithTracker(tracker),
	}
	if pipe.dispatcher != nil {
		opts = append(opts, applog.WithDispatcher(pipe.dispatcher))
	}
	appLogger := applog.NewLogger(appLogConfig(cfg), store, opts...)

	sweeper := applog.NewSweeper(store, appLogger, retentionConfig(cfg))
	scheduler, err := applog.NewRetentionScheduler(sweeper, cfg.Retention.Schedule)
	if err != nil {
		return err
	}

	edge, err := newEdge(cfg)
	if err != nil {
		return err
	}
	defer edge.close()

	router := api.NewRouter(routerConfig(cfg, edge, pipe.name()), api.Dependencies{
		AppLogger:    appLogger,
		Store:        store,
		Hub:          hub,
		BotFilter:    edge.botFilter,
		Limiter:      edge.limiter,
		Resolver:     edge.resolver,
		StoreCircuit: breaker.State,
	})
	defer router.Close()

	handler := router.Handler()
	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.Init(tracing.Config{
			ServiceName: cfg.Tracing.ServiceName,
			Environment: cfg.Server.Environment,
		})
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				logging.Warn().Err(err).Msg("Failed to flush traces")
			}
		}()
		handler = tracing.Middleware(cfg.Tracing.ServiceName)(handler)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
		// WriteTimeout stays zero: the live tail stream is long lived.
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: shutdownTimeout,
	})
	if err != nil {
		return err
	}

	if pipe.embedded != nil {
		tree.AddStorageService(services.NewEmbeddedNATSService(pipe.embedded, shutdownTimeout))
	}
	tree.AddStorageService(scheduler)
	if pipe.dispatcher != nil {
		tree.AddPipelineService(services.NewDispatcherService(pipe.dispatcher))
	}
	tree.AddPipelineService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, shutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")

	supervised = true
	err = <-tree.ServeBackground(ctx)
	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// routerConfig maps settings onto the middleware stack. The request logger
// uses the configurable slow threshold. Error tracking keeps its own
// five-second default.
func routerConfig(cfg *config.Config, e *edge, dispatcher string) api.Config {
	return api.Config{
		CORSOrigins: cfg.Security.CORSOrigins,
		Dispatcher:  dispatcher,
		RequestLog: middleware.RequestLogConfig{
			DBEnabled:     cfg.RequestLog.DBEnabled,
			SlowThreshold: cfg.RequestLog.SlowThreshold(),
			Fingerprinter: e.fingerprinter,
		},
		ErrorTracking: middleware.ErrorTrackingConfig{
			Fingerprinter: e.fingerprinter,
		},
	}
}
