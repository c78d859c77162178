// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

// Package database opens the connections behind the log stores.
//
// Two backends are supported:
//   - DuckDB (github.com/duckdb/duckdb-go/v2), an embedded file database.
//     The applog.DuckDBStore creates its own table on startup.
//   - PostgreSQL through a pgx pool (github.com/jackc/pgx/v5). The schema is
//     owned by the goose migrations embedded from migrations/.
//
// Both return handles that the caller owns and must close.
package database
