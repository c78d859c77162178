// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/tracklog/internal/logging"
)

// DuckDBStore implements Store on an embedded DuckDB database.
type DuckDBStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// NewDuckDBStore creates a DuckDB-backed store. Call CreateTable before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db, now: time.Now}
}

// CreateTable creates the logs table and its indexes if they don't exist.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS logs (
			id TEXT PRIMARY KEY,
			log_type TEXT NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			user_id BIGINT,
			action TEXT,
			controller TEXT,
			request_id TEXT,
			ip_address TEXT,
			context JSON,
			metadata JSON,
			occurred_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_logs_log_type ON logs(log_type);
		CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
		CREATE INDEX IF NOT EXISTS idx_logs_action ON logs(action);
		CREATE INDEX IF NOT EXISTS idx_logs_occurred_at ON logs(occurred_at);
		CREATE INDEX IF NOT EXISTS idx_logs_request_id ON logs(request_id);
		CREATE INDEX IF NOT EXISTS idx_logs_user_occurred ON logs(user_id, occurred_at);
		CREATE INDEX IF NOT EXISTS idx_logs_type_level_occurred ON logs(log_type, level, occurred_at);
		CREATE INDEX IF NOT EXISTS idx_logs_type_occurred ON logs(log_type, occurred_at)
	`

	// Split and execute each statement
	for _, stmt := range strings.Split(query, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("Logs table created/verified")
	return nil
}

// Insert implements Store.
func (s *DuckDBStore) Insert(ctx context.Context, r *Record) error {
	if r == nil {
		return errors.New("record cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prepareInsert(r, s.now())
	query := `INSERT INTO logs (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, insertParams(r)...); err != nil {
		r.ID = ""
		return fmt.Errorf("failed to insert log record: %w", err)
	}
	return nil
}

// duckdbSelect casts the JSON columns to VARCHAR for scanning.
const duckdbSelect = `SELECT id, log_type, level, message, user_id, action, controller,
	request_id, ip_address, CAST(context AS VARCHAR), CAST(metadata AS VARCHAR),
	occurred_at, created_at FROM logs`

// Get implements Store.
func (s *DuckDBStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRecord(s.db.QueryRowContext(ctx, duckdbSelect+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get log record: %w", err)
	}
	return r, nil
}

// Query implements Store.
func (s *DuckDBStore) Query(ctx context.Context, filter Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := buildFilterConditions(&filter, questionPlaceholder)
	rows, err := s.db.QueryContext(ctx, duckdbSelect+f.where()+pageClause(&filter), f.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan log record row")
			continue
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log records: %w", err)
	}
	return records, nil
}

// Count implements Store.
func (s *DuckDBStore) Count(ctx context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := buildFilterConditions(&filter, questionPlaceholder)
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs"+f.where(), f.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count log records: %w", err)
	}
	return count, nil
}

// Stats implements Store.
func (s *DuckDBStore) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dayAgo := now.Add(-24 * time.Hour)
	stats := &Stats{Hourly: emptyHourly(now)}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE level IN ('error', 'fatal')),
			COUNT(*) FILTER (WHERE level = 'warning'),
			COUNT(*) FILTER (WHERE occurred_at >= ?),
			COUNT(DISTINCT user_id) FILTER (WHERE occurred_at >= ?)
		FROM logs`, dayAgo, dayAgo).
		Scan(&stats.Total, &stats.Errors, &stats.Warnings, &stats.Last24h, &stats.UniqueUsers24h)
	if err != nil {
		return nil, fmt.Errorf("failed to get log totals: %w", err)
	}

	byType, err := countByType(ctx, s.db, "SELECT log_type, COUNT(*) FROM logs GROUP BY log_type")
	if err != nil {
		return nil, err
	}
	stats.ByType = byType

	rows, err := s.db.QueryContext(ctx, `
		SELECT date_trunc('hour', occurred_at) AS hour, COUNT(*)
		FROM logs WHERE occurred_at >= ?
		GROUP BY hour`, stats.Hourly[0].Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to get hourly volume: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var hour time.Time
		var count int64
		if err := rows.Scan(&hour, &count); err == nil {
			addToHourly(stats.Hourly, hour, count)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hourly volume: %w", err)
	}
	return stats, nil
}

// countByType executes a GROUP BY query and returns counts per value.
func countByType(ctx context.Context, db *sql.DB, query string) (map[string]int64, error) {
	result := make(map[string]int64)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get log type counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err == nil {
			result[key] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log type counts: %w", err)
	}
	return result, nil
}

// DeleteBatch implements Store.
func (s *DuckDBStore) DeleteBatch(ctx context.Context, logType LogType, before time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = DefaultRetentionBatchSize
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM logs WHERE id IN (
			SELECT id FROM logs WHERE log_type = ? AND occurred_at < ? LIMIT ?
		)`, string(logType), before, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old log records: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return count, nil
}
