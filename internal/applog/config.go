// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import "time"

// Default limits.
const (
	DefaultMaxBytes     = 16000
	DefaultWriteTimeout = 5 * time.Second

	// descriptorMaxBytes caps action, controller, request id and IP address.
	descriptorMaxBytes = 255
)

// DefaultTypes is the persisted type allow-list used when none is configured.
var DefaultTypes = []LogType{
	TypeError,
	TypeHTTPError,
	TypeServerError,
	TypeClientError,
	TypeWarning,
	TypeVirusScan,
	TypeSubscription,
	TypeAuthentication,
	TypeAuthorization,
	TypeBackgroundJob,
}

// Config controls the Log write path. It is built once at startup and
// never mutated afterwards.
type Config struct {
	// Enabled turns durable logging on. When off, only warning and above
	// reach the side channel.
	Enabled bool

	// Async hands records to the dispatcher instead of writing inline.
	Async bool

	// Types and Levels are independent allow-lists. Empty allows all.
	Types  []LogType
	Levels []Level

	// MaxBytes caps the message and each of context and metadata.
	MaxBytes int

	// WriteTimeout bounds a single store insert.
	WriteTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	types := make([]LogType, len(DefaultTypes))
	copy(types, DefaultTypes)
	return Config{
		Enabled:      true,
		Async:        true,
		Types:        types,
		MaxBytes:     DefaultMaxBytes,
		WriteTimeout: DefaultWriteTimeout,
	}
}

func (c *Config) normalize() {
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// Allowed reports whether a normalized (type, level) pair passes both
// allow-lists.
func (c *Config) Allowed(t LogType, l Level) bool {
	if len(c.Types) > 0 && !contains(c.Types, t) {
		return false
	}
	if len(c.Levels) > 0 && !contains(c.Levels, l) {
		return false
	}
	return true
}
