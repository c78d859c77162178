// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"context"
	"errors"
	"testing"
	"time"
)

// deleteFailingStore fails every DeleteBatch.
type deleteFailingStore struct {
	*MemoryStore
}

func (s *deleteFailingStore) DeleteBatch(context.Context, LogType, time.Time, int) (int64, error) {
	return 0, errors.New("locked")
}

func TestSweeper_PerTypeWindows(t *testing.T) {
	store := NewMemoryStore(1000)
	seedStore(t, store,
		Record{LogType: TypeHTTPRequest, Level: LevelInfo, Message: "8 days", OccurredAt: baseTime.AddDate(0, 0, -8)},
		Record{LogType: TypeHTTPRequest, Level: LevelInfo, Message: "2 days", OccurredAt: baseTime.AddDate(0, 0, -2)},
		Record{LogType: TypeError, Level: LevelError, Message: "40 days", OccurredAt: baseTime.AddDate(0, 0, -40)},
		Record{LogType: TypeError, Level: LevelError, Message: "20 days", OccurredAt: baseTime.AddDate(0, 0, -20)},
		Record{LogType: TypeAuthentication, Level: LevelWarning, Message: "400 days", OccurredAt: baseTime.AddDate(0, 0, -400)},
	)

	logStore := NewMemoryStore(10)
	logger := NewLogger(Config{Enabled: true}, logStore, WithSideChannel(NewRecordingSideChannel()))

	sweeper := NewSweeper(store, logger, RetentionConfig{
		DefaultDays: 30,
		PerType: map[LogType]int{
			TypeHTTPRequest:    7,
			TypeAuthentication: 0,
		},
		BatchSize: 1,
	})
	sweeper.now = func() time.Time { return baseTime }

	result, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", result.Deleted)
	}
	if result.PerType[TypeHTTPRequest] != 1 || result.PerType[TypeError] != 1 {
		t.Errorf("unexpected per-type counts: %v", result.PerType)
	}
	if store.Len() != 3 {
		t.Errorf("expected 3 records kept, got %d", store.Len())
	}

	records, _ := store.Query(context.Background(), Filter{Types: []LogType{TypeAuthentication}})
	if len(records) != 1 {
		t.Error("expected authentication record kept forever")
	}

	summary, _ := logStore.Query(context.Background(), Filter{Action: "logs_cleanup_completed"})
	if len(summary) != 1 {
		t.Fatalf("expected one cleanup summary record, got %d", len(summary))
	}
	if summary[0].LogType != TypeBackgroundJob {
		t.Errorf("expected background_job summary, got %q", summary[0].LogType)
	}
}

func TestSweeper_FailureIsLogged(t *testing.T) {
	logStore := NewMemoryStore(10)
	logger := NewLogger(Config{Enabled: true}, logStore, WithSideChannel(NewRecordingSideChannel()))
	sweeper := NewSweeper(&deleteFailingStore{NewMemoryStore(10)}, logger, RetentionConfig{})

	if _, err := sweeper.Sweep(context.Background()); err == nil {
		t.Fatal("expected sweep error")
	}

	failed, _ := logStore.Query(context.Background(), Filter{Action: "logs_cleanup_failed"})
	if len(failed) != 1 || failed[0].Level != LevelError {
		t.Errorf("expected one error-level failure record, got %+v", failed)
	}
}

func TestSweeper_Defaults(t *testing.T) {
	s := NewSweeper(NewMemoryStore(1), nil, RetentionConfig{})
	if s.config.DefaultDays != DefaultRetentionDays {
		t.Errorf("expected default days %d, got %d", DefaultRetentionDays, s.config.DefaultDays)
	}
	if s.config.BatchSize != DefaultRetentionBatchSize {
		t.Errorf("expected default batch size %d, got %d", DefaultRetentionBatchSize, s.config.BatchSize)
	}
	if _, err := s.Sweep(context.Background()); err != nil {
		t.Errorf("sweep of empty store failed: %v", err)
	}
}

func TestNewRetentionScheduler(t *testing.T) {
	sweeper := NewSweeper(NewMemoryStore(1), nil, RetentionConfig{})

	if _, err := NewRetentionScheduler(sweeper, "not a schedule"); err == nil {
		t.Error("expected invalid schedule error")
	}

	sched, err := NewRetentionScheduler(sweeper, "")
	if err != nil {
		t.Fatalf("default schedule rejected: %v", err)
	}
	if sched.schedule != DefaultRetentionSchedule {
		t.Errorf("expected %q, got %q", DefaultRetentionSchedule, sched.schedule)
	}

	stop := runService(t, sched.Serve)
	stop()
}
