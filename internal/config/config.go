// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	AppLog     AppLogConfig     `koanf:"applog"`
	Retention  RetentionConfig  `koanf:"retention"`
	RequestLog RequestLogConfig `koanf:"request_log"`
	BotFilter  BotFilterConfig  `koanf:"bot_filter"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	Redis      RedisConfig      `koanf:"redis"`
	Database   DatabaseConfig   `koanf:"database"`
	NATS       NATSConfig       `koanf:"nats"`
	Sentry     SentryConfig     `koanf:"sentry"`
	Security   SecurityConfig   `koanf:"security"`
	Tracing    TracingConfig    `koanf:"tracing"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port        int           `koanf:"port" validate:"min=1,max=65535"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	Environment string        `koanf:"environment" validate:"oneof=development staging production test"` // Environment mode (default: "development")
}

// IsProduction reports whether production checks apply.
func (s *ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// Addr returns the listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds process log settings
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// AppLogConfig controls the durable log write path
type AppLogConfig struct {
	Enabled bool     `koanf:"enabled"`
	Async   bool     `koanf:"async"`
	Types   []string `koanf:"types" validate:"dive,log_type"`
	Levels  []string `koanf:"levels" validate:"dive,log_level"`

	// MaxBytes caps the message and each of context and metadata.
	MaxBytes int `koanf:"max_bytes" validate:"min=256"`

	// Dispatcher selects the async backend.
	Dispatcher string `koanf:"dispatcher" validate:"oneof=channel watermill nats spool"`

	BufferSize   int           `koanf:"buffer_size" validate:"min=1"`
	Workers      int           `koanf:"workers" validate:"min=1,max=64"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`

	// SpoolDir is the BadgerDB directory of the spool dispatcher.
	SpoolDir string `koanf:"spool_dir"`
}

// RetentionConfig controls the periodic retention sweep
type RetentionConfig struct {
	DefaultDays int `koanf:"default_days" validate:"min=0"`

	// PerType overrides DefaultDays by log type. 0 keeps that type forever.
	PerType map[string]int `koanf:"per_type" validate:"dive,keys,log_type,endkeys,min=0"`

	Schedule  string `koanf:"schedule" validate:"cron_schedule"`
	BatchSize int    `koanf:"batch_size" validate:"min=1,max=100000"`
}

// RequestLogConfig controls per-request durable logging
type RequestLogConfig struct {
	// DBEnabled persists slow successful requests. Errors are always persisted.
	DBEnabled       bool `koanf:"db_enabled"`
	SlowThresholdMS int  `koanf:"slow_threshold_ms" validate:"min=0"`
}

// SlowThreshold returns SlowThresholdMS as a duration.
func (r *RequestLogConfig) SlowThreshold() time.Duration {
	return time.Duration(r.SlowThresholdMS) * time.Millisecond
}

// BotFilterConfig controls the scanner/bot filter
type BotFilterConfig struct {
	Enabled bool `koanf:"enabled"`

	// Secret salts client fingerprints so raw IPs are never logged.
	Secret string `koanf:"secret"`
}

// RateLimitConfig controls request throttling
type RateLimitConfig struct {
	Enabled bool   `koanf:"enabled"`
	Backend string `koanf:"backend" validate:"oneof=memory redis"`
}

// RedisConfig holds the shared rate-limit counter connection
type RedisConfig struct {
	URL string `koanf:"url" validate:"omitempty,url"`
}

// DatabaseConfig selects and tunes the log store
type DatabaseConfig struct {
	Driver    string `koanf:"driver" validate:"oneof=duckdb postgres memory"`
	Path      string `koanf:"path"`
	URL       string `koanf:"url"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"min=0"` // Number of DuckDB threads (0 = use NumCPU)
	MaxConns  int32  `koanf:"max_conns" validate:"min=0"`
}

// NATSConfig holds the nats dispatcher transport settings
type NATSConfig struct {
	URL        string `koanf:"url"`
	QueueGroup string `koanf:"queue_group"`

	// Embedded starts an in-process NATS server on URL's port.
	Embedded bool `koanf:"embedded"`
}

// SentryConfig enables external error tracking
type SentryConfig struct {
	DSN     string `koanf:"dsn"`
	Release string `koanf:"release"`
}

// Enabled reports whether a DSN is configured.
func (s *SentryConfig) Enabled() bool {
	return s.DSN != ""
}

// SecurityConfig holds API authentication settings
type SecurityConfig struct {
	JWTSecret   string   `koanf:"jwt_secret"`
	CORSOrigins []string `koanf:"cors_origins"`
}

// TracingConfig controls OpenTelemetry tracing
type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}
