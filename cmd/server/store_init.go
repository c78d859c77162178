// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/config"
	"github.com/tomtom215/tracklog/internal/database"
	"github.com/tomtom215/tracklog/internal/logging"
)

// memoryStoreCapacity bounds the memory driver.
const memoryStoreCapacity = 100000

// openStore opens the log store selected by DATABASE_DRIVER. The returned
// func releases it and is safe to call once.
func openStore(ctx context.Context, cfg *config.Config) (applog.Store, func(), error) {
	switch cfg.Database.Driver {
	case "duckdb":
		db, err := database.OpenDuckDB(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store := applog.NewDuckDBStore(db)
		if err := store.CreateTable(ctx); err != nil {
			database.CloseDuckDB(db)
			return nil, nil, err
		}
		return store, func() { database.CloseDuckDB(db) }, nil

	case "postgres":
		if err := database.Migrate(ctx, cfg.Database.URL); err != nil {
			return nil, nil, err
		}
		pool, err := database.OpenPostgres(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return applog.NewPostgresStore(pool), pool.Close, nil

	case "memory":
		logging.Warn().Msg("Using the in-memory log store; records are lost on restart")
		return applog.NewMemoryStore(memoryStoreCapacity), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// appLogConfig converts the loaded settings into the write path config.
func appLogConfig(cfg *config.Config) applog.Config {
	types := make([]applog.LogType, 0, len(cfg.AppLog.Types))
	for _, t := range cfg.AppLog.Types {
		types = append(types, applog.NormalizeType(t))
	}
	levels := make([]applog.Level, 0, len(cfg.AppLog.Levels))
	for _, l := range cfg.AppLog.Levels {
		levels = append(levels, applog.NormalizeLevel(l))
	}
	return applog.Config{
		Enabled:      cfg.AppLog.Enabled,
		Async:        cfg.AppLog.Async,
		Types:        types,
		Levels:       levels,
		MaxBytes:     cfg.AppLog.MaxBytes,
		WriteTimeout: cfg.AppLog.WriteTimeout,
	}
}

func retentionConfig(cfg *config.Config) applog.RetentionConfig {
	perType := make(map[applog.LogType]int, len(cfg.Retention.PerType))
	for t, days := range cfg.Retention.PerType {
		perType[applog.NormalizeType(t)] = days
	}
	return applog.RetentionConfig{
		DefaultDays: cfg.Retention.DefaultDays,
		PerType:     perType,
		BatchSize:   cfg.Retention.BatchSize,
	}
}
