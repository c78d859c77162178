// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/tracklog/internal/config"
	"github.com/tomtom215/tracklog/internal/logging"
)

// MemoryPath opens a private in-memory DuckDB database.
const MemoryPath = ":memory:"

// OpenDuckDB opens the DuckDB file at cfg.Path, creating its directory if
// needed, and verifies the connection.
func OpenDuckDB(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if cfg.Path != MemoryPath {
		// 0750: owner rwx, group rx, other none (gosec G301)
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	connStr := duckDBConnString(cfg.Path, numThreads, cfg.MaxMemory)
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	configureConnectionPool(conn)

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", cfg.MaxMemory).
		Msg("DuckDB opened")
	return conn, nil
}

// duckDBConnString builds the DSN. Auto-install and auto-load of extensions
// are disabled so startup never reaches for the network.
func duckDBConnString(path string, threads int, maxMemory string) string {
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&autoinstall_known_extensions=false&autoload_known_extensions=false", path, threads)
	if path == MemoryPath {
		connStr = fmt.Sprintf("?threads=%d", threads)
	}
	if maxMemory != "" {
		connStr += "&max_memory=" + maxMemory
	}
	return connStr
}

// configureConnectionPool sets connection pool parameters.
func configureConnectionPool(conn *sql.DB) {
	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)
}

// CloseDuckDB closes conn, logging any error.
func CloseDuckDB(conn *sql.DB) {
	closeWithLog(conn, "duckdb connection")
}
