// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/tracklog/internal/logging"
)

// PostgresStore implements Store on PostgreSQL through a pgx pool. The
// schema is owned by the goose migrations in internal/database.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

const postgresSelect = `SELECT id, log_type, level, message, user_id, action, controller,
	request_id, ip_address, context::text, metadata::text, occurred_at, created_at FROM logs`

// Insert implements Store.
func (s *PostgresStore) Insert(ctx context.Context, r *Record) error {
	if r == nil {
		return errors.New("record cannot be nil")
	}
	prepareInsert(r, s.now())

	query := `INSERT INTO logs (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11::jsonb, $12, $13)`
	if _, err := s.pool.Exec(ctx, query, insertParams(r)...); err != nil {
		r.ID = ""
		return fmt.Errorf("insert log record: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	r, err := scanRecord(s.pool.QueryRow(ctx, postgresSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get log record: %w", err)
	}
	return r, nil
}

// Query implements Store.
func (s *PostgresStore) Query(ctx context.Context, filter Filter) ([]Record, error) {
	f := buildFilterConditions(&filter, dollarPlaceholder)
	rows, err := s.pool.Query(ctx, postgresSelect+f.where()+pageClause(&filter), f.args...)
	if err != nil {
		return nil, fmt.Errorf("query log records: %w", err)
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
		return nil, fmt.Errorf("iterate log records: %w", err)
	}
	return records, nil
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context, filter Filter) (int64, error) {
	f := buildFilterConditions(&filter, dollarPlaceholder)
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM logs"+f.where(), f.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count log records: %w", err)
	}
	return count, nil
}

// Stats implements Store.
func (s *PostgresStore) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	dayAgo := now.Add(-24 * time.Hour)
	stats := &Stats{Hourly: emptyHourly(now), ByType: make(map[string]int64)}

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE level IN ('error', 'fatal')),
			COUNT(*) FILTER (WHERE level = 'warning'),
			COUNT(*) FILTER (WHERE occurred_at >= $1),
			COUNT(DISTINCT user_id) FILTER (WHERE occurred_at >= $1)
		FROM logs`, dayAgo).
		Scan(&stats.Total, &stats.Errors, &stats.Warnings, &stats.Last24h, &stats.UniqueUsers24h)
	if err != nil {
		return nil, fmt.Errorf("get log totals: %w", err)
	}

	typeRows, err := s.pool.Query(ctx, "SELECT log_type, COUNT(*) FROM logs GROUP BY log_type")
	if err != nil {
		return nil, fmt.Errorf("get log type counts: %w", err)
	}
	for typeRows.Next() {
		var key string
		var count int64
		if err := typeRows.Scan(&key, &count); err == nil {
			stats.ByType[key] = count
		}
	}
	typeRows.Close()
	if err := typeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log type counts: %w", err)
	}

	hourRows, err := s.pool.Query(ctx, `
		SELECT date_trunc('hour', occurred_at AT TIME ZONE 'UTC') AS hour, COUNT(*)
		FROM logs WHERE occurred_at >= $1
		GROUP BY hour`, stats.Hourly[0].Hour)
	if err != nil {
		return nil, fmt.Errorf("get hourly volume: %w", err)
	}
	defer hourRows.Close()
	for hourRows.Next() {
		var hour time.Time
		var count int64
		if err := hourRows.Scan(&hour, &count); err == nil {
			addToHourly(stats.Hourly, hour, count)
		}
	}
	if err := hourRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hourly volume: %w", err)
	}
	return stats, nil
}

// DeleteBatch implements Store.
func (s *PostgresStore) DeleteBatch(ctx context.Context, logType LogType, before time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = DefaultRetentionBatchSize
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM logs WHERE id IN (
			SELECT id FROM logs WHERE log_type = $1 AND occurred_at < $2 LIMIT $3
		)`, string(logType), before, limit)
	if err != nil {
		return 0, fmt.Errorf("delete old log records: %w", err)
	}
	return tag.RowsAffected(), nil
}
