// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tracklog/config.yaml",
	"/etc/tracklog/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// retentionEnvPrefix is the lowercased prefix of per-type retention variables.
const retentionEnvPrefix = "log_retention_days_"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		AppLog: AppLogConfig{
			Enabled: true,
			Async:   true,
			Types: []string{
				"error", "http_error", "server_error", "client_error", "warning",
				"virus_scan", "subscription", "authentication", "authorization", "background_job",
			},
			Levels:       []string{}, // Empty allows every level
			MaxBytes:     16000,
			Dispatcher:   "channel",
			BufferSize:   1024,
			Workers:      2,
			WriteTimeout: 5 * time.Second,
			SpoolDir:     "/data/spool",
		},
		Retention: RetentionConfig{
			DefaultDays: 30,
			PerType:     map[string]int{},
			Schedule:    "@daily",
			BatchSize:   1000,
		},
		RequestLog: RequestLogConfig{
			DBEnabled:       false,
			SlowThresholdMS: 800,
		},
		BotFilter: BotFilterConfig{
			Enabled: true,
			Secret:  "",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Backend: "memory",
		},
		Redis: RedisConfig{
			URL: "redis://127.0.0.1:6379/0",
		},
		Database: DatabaseConfig{
			Driver:    "duckdb",
			Path:      "/data/tracklog.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
			MaxConns:  10,
		},
		NATS: NATSConfig{
			URL:        "nats://127.0.0.1:4222",
			QueueGroup: "applog-writers",
			Embedded:   false,
		},
		Security: SecurityConfig{
			JWTSecret:   "",
			CORSOrigins: []string{"*"},
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "tracklog",
		},
	}
}

// Load loads configuration with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting, including values from .env
//
// The returned Config is validated.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	defaults := k.Copy()

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// DB_LOG_TYPES -> applog.types
	// LOG_RETENTION_DAYS_HTTP_REQUEST -> retention.per_type.http_request
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k, defaults); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	if err := processBoolFields(k); err != nil {
		return nil, fmt.Errorf("failed to process boolean fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"applog.types",
	"applog.levels",
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
// A value that lists nothing falls back to the built-in default.
func processSliceFields(k, defaults *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from defaults or YAML)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok {
			continue
		}
		list := splitList(strVal)
		if len(list) == 0 {
			list = defaults.Strings(path)
		}
		if err := k.Set(path, list); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// boolConfigPaths lists boolean settings that accept yes/no spellings.
var boolConfigPaths = []string{
	"logging.caller",
	"applog.enabled",
	"applog.async",
	"request_log.db_enabled",
	"bot_filter.enabled",
	"rate_limit.enabled",
	"nats.embedded",
	"tracing.enabled",
}

// processBoolFields normalizes string booleans so true/1/yes/y and
// false/0/no/n all decode.
func processBoolFields(k *koanf.Koanf) error {
	for _, path := range boolConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		b, err := parseBool(strVal)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := k.Set(path, b); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server mappings
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Durable log mappings
	"db_logging_enabled":   "applog.enabled",
	"db_log_async":         "applog.async",
	"db_log_types":         "applog.types",
	"db_log_levels":        "applog.levels",
	"db_log_max_bytes":     "applog.max_bytes",
	"db_log_dispatcher":    "applog.dispatcher",
	"db_log_buffer_size":   "applog.buffer_size",
	"db_log_workers":       "applog.workers",
	"db_log_write_timeout": "applog.write_timeout",
	"db_log_spool_dir":     "applog.spool_dir",

	// Retention mappings (per-type keys are handled by prefix)
	"log_retention_days_default": "retention.default_days",
	"log_retention_schedule":     "retention.schedule",
	"log_retention_batch_size":   "retention.batch_size",

	// Request logging mappings
	"request_db_logging_enabled":    "request_log.db_enabled",
	"request_log_slow_threshold_ms": "request_log.slow_threshold_ms",

	// Edge protection mappings
	"bot_filter_enabled": "bot_filter.enabled",
	"fingerprint_secret": "bot_filter.secret",
	"rate_limit_enabled": "rate_limit.enabled",
	"rate_limit_backend": "rate_limit.backend",
	"redis_url":          "redis.url",

	// Database mappings
	"database_driver":    "database.driver",
	"duckdb_path":        "database.path",
	"duckdb_max_memory":  "database.max_memory",
	"duckdb_threads":     "database.threads",
	"database_url":       "database.url",
	"database_max_conns": "database.max_conns",

	// NATS mappings
	"nats_url":         "nats.url",
	"nats_queue_group": "nats.queue_group",
	"nats_embedded":    "nats.embedded",

	// Error tracking mappings
	"sentry_dsn":     "sentry.dsn",
	"sentry_release": "sentry.release",

	// Security mappings
	"jwt_secret":   "security.jwt_secret",
	"cors_origins": "security.cors_origins",

	// Tracing mappings
	"tracing_enabled":      "tracing.enabled",
	"tracing_service_name": "tracing.service_name",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - DB_LOG_TYPES -> applog.types
//   - HTTP_PORT -> server.port
//   - LOG_RETENTION_DAYS_HTTP_REQUEST -> retention.per_type.http_request
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	if logType, ok := strings.CutPrefix(key, retentionEnvPrefix); ok && logType != "" {
		return "retention.per_type." + logType
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
