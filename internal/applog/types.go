// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import "strings"

// LogType classifies a log record. The set is closed; unknown input
// normalizes to TypeSystem.
type LogType string

// Log types.
const (
	TypeHTTPRequest    LogType = "http_request"
	TypeHTTPError      LogType = "http_error"
	TypeUserAction     LogType = "user_action"
	TypeError          LogType = "error"
	TypeVirusScan      LogType = "virus_scan"
	TypeDatabaseQuery  LogType = "database_query"
	TypeSystem         LogType = "system"
	TypeAuthentication LogType = "authentication"
	TypeAuthorization  LogType = "authorization"
	TypeBackgroundJob  LogType = "background_job"
	TypeClientError    LogType = "client_error"
	TypeServerError    LogType = "server_error"
	TypeWarning        LogType = "warning"
	TypeSubscription   LogType = "subscription"
	TypeCleanup        LogType = "cleanup"
)

// FallbackType is used for any log type outside the closed set.
const FallbackType = TypeSystem

// AllTypes lists every log type in a stable order.
var AllTypes = []LogType{
	TypeHTTPRequest,
	TypeHTTPError,
	TypeUserAction,
	TypeError,
	TypeVirusScan,
	TypeDatabaseQuery,
	TypeSystem,
	TypeAuthentication,
	TypeAuthorization,
	TypeBackgroundJob,
	TypeClientError,
	TypeServerError,
	TypeWarning,
	TypeSubscription,
	TypeCleanup,
}

var validTypes = func() map[LogType]struct{} {
	m := make(map[LogType]struct{}, len(AllTypes))
	for _, t := range AllTypes {
		m[t] = struct{}{}
	}
	return m
}()

// Valid reports whether t is in the closed set.
func (t LogType) Valid() bool {
	_, ok := validTypes[t]
	return ok
}

// NormalizeType maps free-form input onto the closed set.
func NormalizeType(s string) LogType {
	t := LogType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return FallbackType
}

// Level is the severity of a log record.
type Level string

// Levels, lowest to highest.
const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// FallbackLevel is used for any level outside the closed set.
const FallbackLevel = LevelInfo

// AllLevels lists every level, lowest first.
var AllLevels = []Level{LevelDebug, LevelInfo, LevelWarning, LevelError, LevelFatal}

// Valid reports whether l is in the closed set.
func (l Level) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarning, LevelError, LevelFatal:
		return true
	default:
		return false
	}
}

// AtLeastWarning reports whether l is warning, error or fatal.
func (l Level) AtLeastWarning() bool {
	switch l {
	case LevelWarning, LevelError, LevelFatal:
		return true
	default:
		return false
	}
}

// NormalizeLevel maps free-form input onto the closed set.
// "warn" is accepted as an alias of warning.
func NormalizeLevel(s string) Level {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if l == "warn" {
		return LevelWarning
	}
	if l.Valid() {
		return l
	}
	return FallbackLevel
}

// LevelForStatus derives a level from an HTTP status code.
func LevelForStatus(status int) Level {
	switch {
	case status >= 500:
		return LevelError
	case status >= 400:
		return LevelWarning
	default:
		return LevelInfo
	}
}
