// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/tomtom215/tracklog/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrate applies pending PostgreSQL migrations to the database at dsn.
func Migrate(ctx context.Context, dsn string) error {
	return withSQLDB(dsn, func(db *sql.DB) error {
		if err := configureGoose(); err != nil {
			return err
		}

		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		logging.Info().Str("dir", migrationsDir).Msg("Applying database migrations")
		if err := goose.UpContext(runCtx, db, migrationsDir); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}

		version, err := goose.GetDBVersionContext(runCtx, db)
		if err != nil {
			return fmt.Errorf("read migration version: %w", err)
		}
		logging.Info().Int64("version", version).Msg("Database migrations applied")
		return nil
	})
}

// MigrateDown rolls back the latest migration. Used by tests to reset the
// schema.
func MigrateDown(ctx context.Context, dsn string) error {
	return withSQLDB(dsn, func(db *sql.DB) error {
		if err := configureGoose(); err != nil {
			return err
		}
		if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("rollback latest migration: %w", err)
		}
		return nil
	})
}

func configureGoose() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}
	return nil
}

// withSQLDB opens a short-lived database/sql handle through the pgx stdlib
// driver, which goose requires.
func withSQLDB(dsn string, fn func(*sql.DB) error) error {
	if dsn == "" {
		return errors.New("empty database dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open sql connection: %w", err)
	}
	defer closeWithLog(db, "migration connection")

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping sql connection: %w", err)
	}
	return fn(db)
}
