// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

/*
Package config provides centralized configuration management for Tracklog.

Configuration is built once at startup by Load and injected into every
component. Nothing reads the environment after that.

# Configuration Sources

Sources, lowest to highest precedence:
  - built-in defaults (koanf structs provider)
  - an optional YAML file: CONFIG_PATH, ./config.yaml or /etc/tracklog/config.yaml
  - environment variables, including those loaded from a local .env file

Comma-separated lists (DB_LOG_TYPES, DB_LOG_LEVELS, CORS_ORIGINS) are split,
and booleans accept true/1/yes/y and false/0/no/n.

# Environment Variables

Durable logging:
  - DB_LOGGING_ENABLED, DB_LOG_ASYNC, DB_LOG_TYPES, DB_LOG_LEVELS
  - DB_LOG_MAX_BYTES (default: 16000)
  - DB_LOG_DISPATCHER: channel, watermill, nats or spool (default: channel)
  - DB_LOG_BUFFER_SIZE, DB_LOG_WORKERS, DB_LOG_WRITE_TIMEOUT, DB_LOG_SPOOL_DIR

Retention:
  - LOG_RETENTION_DAYS_DEFAULT (default: 30)
  - LOG_RETENTION_DAYS_<TYPE>, for example LOG_RETENTION_DAYS_HTTP_REQUEST=7
  - LOG_RETENTION_SCHEDULE (default: @daily), LOG_RETENTION_BATCH_SIZE

Request edge:
  - REQUEST_DB_LOGGING_ENABLED, REQUEST_LOG_SLOW_THRESHOLD_MS (default: 800)
  - BOT_FILTER_ENABLED, FINGERPRINT_SECRET
  - RATE_LIMIT_ENABLED, RATE_LIMIT_BACKEND (memory or redis), REDIS_URL

Storage and transport:
  - DATABASE_DRIVER (duckdb, postgres or memory), DUCKDB_PATH, DATABASE_URL
  - NATS_URL, NATS_QUEUE_GROUP, NATS_EMBEDDED

Server and observability:
  - HTTP_PORT, HTTP_HOST, HTTP_TIMEOUT, ENVIRONMENT
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
  - SENTRY_DSN, SENTRY_RELEASE, TRACING_ENABLED
  - JWT_SECRET, CORS_ORIGINS

# Validation

Load validates struct tags through internal/validation and then checks
cross-field rules: driver-specific settings, dispatcher prerequisites and
secret strength when ENVIRONMENT=production.
*/
package config
