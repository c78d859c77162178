// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tomtom215/tracklog/internal/logging"
	"github.com/tomtom215/tracklog/internal/metrics"
)

// Retention defaults.
const (
	DefaultRetentionDays      = 30
	DefaultRetentionBatchSize = 1000
	DefaultRetentionSchedule  = "@daily"
)

// RetentionConfig sets how long each log type is kept.
type RetentionConfig struct {
	// DefaultDays applies to every type without an override.
	DefaultDays int

	// PerType overrides DefaultDays. A value <= 0 keeps that type forever.
	PerType map[LogType]int

	// BatchSize bounds each delete statement.
	BatchSize int
}

// DaysFor returns the retention window of t in days.
func (c *RetentionConfig) DaysFor(t LogType) int {
	if days, ok := c.PerType[t]; ok {
		return days
	}
	return c.DefaultDays
}

// SweepResult reports one retention run.
type SweepResult struct {
	Deleted int64
	PerType map[LogType]int64
}

// Sweeper deletes records older than their type's retention window.
type Sweeper struct {
	store  Store
	logger *Logger
	config RetentionConfig
	now    func() time.Time
}

// NewSweeper creates a Sweeper. The outcome of each run is reported
// through logger.
func NewSweeper(store Store, logger *Logger, config RetentionConfig) *Sweeper {
	if config.DefaultDays == 0 {
		config.DefaultDays = DefaultRetentionDays
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultRetentionBatchSize
	}
	return &Sweeper{store: store, logger: logger, config: config, now: time.Now}
}

// Sweep runs one retention pass over every log type.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	now := s.now()
	result := &SweepResult{PerType: make(map[LogType]int64)}

	for _, t := range AllTypes {
		days := s.config.DaysFor(t)
		if days <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -days)

		deleted, err := s.sweepType(ctx, t, cutoff)
		result.Deleted += deleted
		if deleted > 0 {
			result.PerType[t] = deleted
		}
		if err != nil {
			s.reportFailure(ctx, err, result)
			return result, err
		}
	}

	perType := make(map[string]int64, len(result.PerType))
	for t, n := range result.PerType {
		perType[string(t)] = n
	}
	metrics.RecordRetention(perType, time.Since(start))

	if s.logger != nil {
		s.logger.Log(ctx, Entry{
			LogType: string(TypeBackgroundJob),
			Level:   string(LevelInfo),
			Message: "Old logs cleanup completed",
			Action:  "logs_cleanup_completed",
			Context: map[string]any{
				"logs_deleted":           result.Deleted,
				"per_type_deleted":       perType,
				"retention_days_default": s.config.DefaultDays,
			},
		})
	}
	return result, nil
}

// sweepType deletes in batches until a short batch signals completion.
func (s *Sweeper) sweepType(ctx context.Context, t LogType, cutoff time.Time) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.store.DeleteBatch(ctx, t, cutoff, s.config.BatchSize)
		total += n
		if err != nil {
			return total, fmt.Errorf("delete %s records: %w", t, err)
		}
		if n < int64(s.config.BatchSize) {
			return total, nil
		}
	}
}

func (s *Sweeper) reportFailure(ctx context.Context, err error, partial *SweepResult) {
	logging.Error().Err(err).Int64("deleted", partial.Deleted).Msg("Log retention sweep failed")
	if s.logger == nil {
		return
	}
	s.logger.Log(ctx, Entry{
		LogType: string(TypeBackgroundJob),
		Level:   string(LevelError),
		Message: "Old logs cleanup failed",
		Action:  "logs_cleanup_failed",
		Context: map[string]any{
			"error":        err.Error(),
			"logs_deleted": partial.Deleted,
		},
	})
}

// RetentionScheduler runs a Sweeper on a cron schedule. It implements
// suture.Service.
type RetentionScheduler struct {
	sweeper  *Sweeper
	schedule string
}

// NewRetentionScheduler validates schedule and returns a scheduler.
func NewRetentionScheduler(sweeper *Sweeper, schedule string) (*RetentionScheduler, error) {
	if schedule == "" {
		schedule = DefaultRetentionSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	return &RetentionScheduler{sweeper: sweeper, schedule: schedule}, nil
}

// Serve runs the cron loop until ctx is canceled, then waits for a running
// sweep to finish.
func (r *RetentionScheduler) Serve(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(r.schedule, func() {
		if _, err := r.sweeper.Sweep(ctx); err != nil {
			logging.Warn().Err(err).Msg("Scheduled log retention sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule retention sweep: %w", err)
	}

	logging.Info().Str("schedule", r.schedule).Msg("Log retention scheduler started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (r *RetentionScheduler) String() string {
	return "applog-retention-scheduler"
}
