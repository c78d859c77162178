// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

// isolate runs the test from an empty directory so no .env or config.yaml
// from the working tree is picked up.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if !cfg.AppLog.Enabled || !cfg.AppLog.Async {
		t.Error("expected durable logging enabled and async by default")
	}
	if cfg.AppLog.MaxBytes != 16000 {
		t.Errorf("expected max bytes 16000, got %d", cfg.AppLog.MaxBytes)
	}
	if len(cfg.AppLog.Types) != 10 {
		t.Errorf("expected 10 default types, got %v", cfg.AppLog.Types)
	}
	if len(cfg.AppLog.Levels) != 0 {
		t.Errorf("expected no level allow-list, got %v", cfg.AppLog.Levels)
	}
	if cfg.AppLog.WriteTimeout != 5*time.Second {
		t.Errorf("expected write timeout 5s, got %v", cfg.AppLog.WriteTimeout)
	}
	if cfg.Retention.DefaultDays != 30 || cfg.Retention.Schedule != "@daily" {
		t.Errorf("unexpected retention defaults: %+v", cfg.Retention)
	}
	if cfg.RequestLog.DBEnabled || cfg.RequestLog.SlowThresholdMS != 800 {
		t.Errorf("unexpected request log defaults: %+v", cfg.RequestLog)
	}
	if cfg.RequestLog.SlowThreshold() != 800*time.Millisecond {
		t.Errorf("expected 800ms slow threshold, got %v", cfg.RequestLog.SlowThreshold())
	}
	if !cfg.BotFilter.Enabled || !cfg.RateLimit.Enabled || cfg.RateLimit.Backend != "memory" {
		t.Error("expected edge protection enabled with the memory backend")
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("unexpected address %s", cfg.Server.Addr())
	}
	if cfg.Sentry.Enabled() {
		t.Error("expected Sentry disabled without a DSN")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("DB_LOGGING_ENABLED", "no")
	t.Setenv("DB_LOG_ASYNC", "0")
	t.Setenv("DB_LOG_TYPES", "error, user_action ,")
	t.Setenv("DB_LOG_LEVELS", "warning,error")
	t.Setenv("DB_LOG_MAX_BYTES", "4096")
	t.Setenv("DB_LOG_DISPATCHER", "spool")
	t.Setenv("DB_LOG_WRITE_TIMEOUT", "2s")
	t.Setenv("REQUEST_DB_LOGGING_ENABLED", "yes")
	t.Setenv("REQUEST_LOG_SLOW_THRESHOLD_MS", "250")
	t.Setenv("LOG_RETENTION_DAYS_DEFAULT", "14")
	t.Setenv("LOG_RETENTION_DAYS_HTTP_REQUEST", "7")
	t.Setenv("LOG_RETENTION_DAYS_AUTHENTICATION", "0")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppLog.Enabled || cfg.AppLog.Async {
		t.Error("expected yes/no style booleans to disable logging")
	}
	if want := []string{"error", "user_action"}; !reflect.DeepEqual(cfg.AppLog.Types, want) {
		t.Errorf("expected types %v, got %v", want, cfg.AppLog.Types)
	}
	if want := []string{"warning", "error"}; !reflect.DeepEqual(cfg.AppLog.Levels, want) {
		t.Errorf("expected levels %v, got %v", want, cfg.AppLog.Levels)
	}
	if cfg.AppLog.MaxBytes != 4096 || cfg.AppLog.Dispatcher != "spool" {
		t.Errorf("unexpected applog config: %+v", cfg.AppLog)
	}
	if cfg.AppLog.WriteTimeout != 2*time.Second {
		t.Errorf("expected 2s write timeout, got %v", cfg.AppLog.WriteTimeout)
	}
	if !cfg.RequestLog.DBEnabled || cfg.RequestLog.SlowThresholdMS != 250 {
		t.Errorf("unexpected request log config: %+v", cfg.RequestLog)
	}
	if cfg.Retention.DefaultDays != 14 {
		t.Errorf("expected default retention 14, got %d", cfg.Retention.DefaultDays)
	}
	if cfg.Retention.PerType["http_request"] != 7 {
		t.Errorf("expected http_request retention 7, got %v", cfg.Retention.PerType)
	}
	if days, ok := cfg.Retention.PerType["authentication"]; !ok || days != 0 {
		t.Errorf("expected authentication kept forever, got %v", cfg.Retention.PerType)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "tracklog.yaml")
	content := `
applog:
  dispatcher: watermill
  workers: 4
retention:
  per_type:
    error: 90
security:
  cors_origins:
    - https://admin.example.com
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	// Environment still wins over the file.
	t.Setenv("DB_LOG_WORKERS", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.AppLog.Dispatcher != "watermill" {
		t.Errorf("expected watermill dispatcher from file, got %q", cfg.AppLog.Dispatcher)
	}
	if cfg.AppLog.Workers != 8 {
		t.Errorf("expected env override of workers, got %d", cfg.AppLog.Workers)
	}
	if cfg.Retention.PerType["error"] != 90 {
		t.Errorf("expected error retention 90, got %v", cfg.Retention.PerType)
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "https://admin.example.com" {
		t.Errorf("unexpected CORS origins %v", cfg.Security.CORSOrigins)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown log type",
			env:     map[string]string{"DB_LOG_TYPES": "error,bogus"},
			wantErr: "known log type",
		},
		{
			name:    "misspelled log level",
			env:     map[string]string{"DB_LOG_LEVELS": "warning,eror"},
			wantErr: "one of: debug info warning error fatal",
		},
		{
			name:    "log type with wrong case",
			env:     map[string]string{"DB_LOG_TYPES": "Error"},
			wantErr: "known log type",
		},
		{
			name:    "unknown dispatcher",
			env:     map[string]string{"DB_LOG_DISPATCHER": "kafka"},
			wantErr: "Dispatcher",
		},
		{
			name:    "bad boolean",
			env:     map[string]string{"DB_LOG_ASYNC": "maybe"},
			wantErr: "invalid boolean",
		},
		{
			name:    "bad schedule",
			env:     map[string]string{"LOG_RETENTION_SCHEDULE": "sometimes"},
			wantErr: "cron schedule",
		},
		{
			name:    "unknown retention type",
			env:     map[string]string{"LOG_RETENTION_DAYS_NONSENSE": "3"},
			wantErr: "known log type",
		},
		{
			name:    "postgres without url",
			env:     map[string]string{"DATABASE_DRIVER": "postgres"},
			wantErr: "DATABASE_URL",
		},
		{
			name:    "production without secrets",
			env:     map[string]string{"ENVIRONMENT": "production"},
			wantErr: "JWT_SECRET",
		},
		{
			name: "production without fingerprint secret",
			env: map[string]string{
				"ENVIRONMENT": "production",
				"JWT_SECRET":  strings.Repeat("j", 32),
			},
			wantErr: "FINGERPRINT_SECRET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_EmptyListsKeepDefaults(t *testing.T) {
	for _, value := range []string{"", " , ,"} {
		t.Run(strconv.Quote(value), func(t *testing.T) {
			isolate(t)
			t.Setenv("DB_LOG_TYPES", value)
			t.Setenv("DB_LOG_LEVELS", value)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if want := defaultConfig().AppLog.Types; !reflect.DeepEqual(cfg.AppLog.Types, want) {
				t.Errorf("expected default types %v, got %v", want, cfg.AppLog.Types)
			}
			if len(cfg.AppLog.Levels) != 0 {
				t.Errorf("expected no level allow-list, got %v", cfg.AppLog.Levels)
			}
		})
	}
}

func TestLoad_ProductionWithSecrets(t *testing.T) {
	isolate(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", strings.Repeat("j", 32))
	t.Setenv("FINGERPRINT_SECRET", strings.Repeat("f", 32))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !cfg.Server.IsProduction() {
		t.Error("expected production mode")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"DB_LOG_TYPES", "applog.types"},
		{"HTTP_PORT", "server.port"},
		{"FINGERPRINT_SECRET", "bot_filter.secret"},
		{"LOG_RETENTION_DAYS_DEFAULT", "retention.default_days"},
		{"LOG_RETENTION_DAYS_HTTP_REQUEST", "retention.per_type.http_request"},
		{"LOG_RETENTION_DAYS_", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.key); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestParseBool(t *testing.T) {
	truthy := []string{"true", "TRUE", "1", "yes", "Y", " on "}
	falsy := []string{"false", "0", "no", "N", "off", ""}

	for _, s := range truthy {
		if b, err := parseBool(s); err != nil || !b {
			t.Errorf("parseBool(%q) = %v, %v; want true", s, b, err)
		}
	}
	for _, s := range falsy {
		if b, err := parseBool(s); err != nil || b {
			t.Errorf("parseBool(%q) = %v, %v; want false", s, b, err)
		}
	}
	if _, err := parseBool("perhaps"); err == nil {
		t.Error("expected error for unrecognized boolean")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, b,,c ,")
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("splitList = %v, want %v", got, want)
	}
	if got := splitList(""); len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}
