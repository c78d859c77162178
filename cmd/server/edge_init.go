// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package main

import (
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/tracklog/internal/auth"
	"github.com/tomtom215/tracklog/internal/botfilter"
	"github.com/tomtom215/tracklog/internal/config"
	"github.com/tomtom215/tracklog/internal/logging"
	"github.com/tomtom215/tracklog/internal/ratelimit"
)

// edge holds the request-facing filters that run before the handlers.
type edge struct {
	fingerprinter *botfilter.Fingerprinter
	botFilter     *botfilter.Filter
	limiter       *ratelimit.Limiter
	resolver      auth.Resolver
	redis         *redis.Client
}

func newEdge(cfg *config.Config) (*edge, error) {
	e := &edge{fingerprinter: botfilter.NewFingerprinter(cfg.BotFilter.Secret)}

	if cfg.BotFilter.Enabled {
		e.botFilter = botfilter.New(botfilter.Config{Enabled: true}, e.fingerprinter, logging.WithComponent("botfilter"))
	}

	if cfg.RateLimit.Enabled {
		var counter ratelimit.Counter = ratelimit.NewMemoryCounter()
		if cfg.RateLimit.Backend == "redis" {
			client, err := ratelimit.NewRedisClient(cfg.Redis.URL)
			if err != nil {
				return nil, err
			}
			e.redis = client
			counter = ratelimit.NewRedisCounter(client)
		}
		e.limiter = ratelimit.New(counter, nil,
			ratelimit.WithFingerprinter(e.fingerprinter),
			ratelimit.WithLogger(logging.WithComponent("ratelimit")),
		)
		logging.Info().Str("backend", cfg.RateLimit.Backend).Msg("Rate limiting enabled")
	}

	if cfg.Security.JWTSecret != "" {
		resolver, err := auth.NewJWTResolver(cfg.Security.JWTSecret)
		if err != nil {
			e.close()
			return nil, err
		}
		e.resolver = resolver
	} else {
		logging.Warn().Msg("JWT_SECRET is not set: admin log endpoints will reject every request")
	}

	return e, nil
}

func (e *edge) close() {
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
}
