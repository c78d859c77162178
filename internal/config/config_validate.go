// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/tracklog/internal/validation"
)

// minSecretLength applies to JWT_SECRET and FINGERPRINT_SECRET in production.
const minSecretLength = 32

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateDispatcher(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	return c.validateSecrets()
}

// validateDatabase checks driver-specific settings
func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "duckdb":
		if c.Database.Path == "" {
			return fmt.Errorf("DUCKDB_PATH is required when DATABASE_DRIVER=duckdb")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER=postgres")
		}
		u, err := url.Parse(c.Database.URL)
		if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			return fmt.Errorf("DATABASE_URL must be a postgres:// URL")
		}
	}
	return nil
}

// validateDispatcher checks settings of the selected async backend
func (c *Config) validateDispatcher() error {
	if !c.AppLog.Async {
		return nil
	}
	switch c.AppLog.Dispatcher {
	case "spool":
		if c.AppLog.SpoolDir == "" {
			return fmt.Errorf("DB_LOG_SPOOL_DIR is required when DB_LOG_DISPATCHER=spool")
		}
	case "nats":
		if !strings.HasPrefix(c.NATS.URL, "nats://") {
			return fmt.Errorf("NATS_URL must start with nats:// when DB_LOG_DISPATCHER=nats")
		}
	}
	return nil
}

// validateRateLimit checks the shared counter settings
func (c *Config) validateRateLimit() error {
	if c.RateLimit.Enabled && c.RateLimit.Backend == "redis" && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_BACKEND=redis")
	}
	return nil
}

// validateSecrets enforces secret strength in production. Development runs
// without secrets; fingerprints then use an empty salt.
func (c *Config) validateSecrets() error {
	if !c.Server.IsProduction() {
		return nil
	}
	if len(c.Security.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in production", minSecretLength)
	}
	if c.BotFilter.Enabled && len(c.BotFilter.Secret) < minSecretLength {
		return fmt.Errorf("FINGERPRINT_SECRET must be at least %d characters in production", minSecretLength)
	}
	return nil
}
