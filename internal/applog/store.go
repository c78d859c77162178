// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned by Store.Get for an unknown id.
var ErrNotFound = errors.New("log record not found")

// Store is the durable sink for records. Records are append-only: there is
// no update path, only insert and batched delete for retention.
type Store interface {
	// Insert persists r, assigning its ID and CreatedAt.
	Insert(ctx context.Context, r *Record) error

	// Get returns one record or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Query returns matching records, newest occurred_at first.
	Query(ctx context.Context, filter Filter) ([]Record, error)

	// Count returns the number of matching records, ignoring pagination.
	Count(ctx context.Context, filter Filter) (int64, error)

	// Stats summarizes the store relative to now.
	Stats(ctx context.Context, now time.Time) (*Stats, error)

	// DeleteBatch removes at most limit records of logType that occurred
	// before the cutoff and returns how many were removed.
	DeleteBatch(ctx context.Context, logType LogType, before time.Time, limit int) (int64, error)
}

// prepareInsert fills the store-owned fields of r.
func prepareInsert(r *Record, now time.Time) {
	r.assignID()
	r.CreatedAt = now.UTC()
	if r.OccurredAt.IsZero() {
		r.OccurredAt = r.CreatedAt
	}
}

// MemoryStore implements Store in memory.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	records []Record
	mu      sync.RWMutex
	maxLen  int
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store holding at most maxLen records.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		records: make([]Record, 0, 64),
		maxLen:  maxLen,
		now:     time.Now,
	}
}

// Insert implements Store.
func (s *MemoryStore) Insert(ctx context.Context, r *Record) error {
	if r == nil {
		return errors.New("record cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Enforce max length by removing the oldest 10%
	if len(s.records) >= s.maxLen {
		removeCount := max(s.maxLen/10, 1)
		s.records = s.records[removeCount:]
	}

	prepareInsert(r, s.now())
	s.records = append(s.records, *r)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.records {
		if s.records[i].ID == id {
			r := s.records[i]
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// Query implements Store.
func (s *MemoryStore) Query(_ context.Context, filter Filter) ([]Record, error) {
	s.mu.RLock()
	matched := make([]Record, 0)
	for i := range s.records {
		if filter.Matches(&s.records[i]) {
			matched = append(matched, s.records[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []Record{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.records {
		if filter.Matches(&s.records[i]) {
			count++
		}
	}
	return count, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(_ context.Context, now time.Time) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		Total:  int64(len(s.records)),
		ByType: make(map[string]int64),
		Hourly: emptyHourly(now),
	}
	dayAgo := now.Add(-24 * time.Hour)
	users := make(map[int64]struct{})

	for i := range s.records {
		r := &s.records[i]
		stats.ByType[string(r.LogType)]++
		switch r.Level {
		case LevelError, LevelFatal:
			stats.Errors++
		case LevelWarning:
			stats.Warnings++
		}
		if r.OccurredAt.Before(dayAgo) {
			continue
		}
		stats.Last24h++
		if r.UserID != nil {
			users[*r.UserID] = struct{}{}
		}
		addToHourly(stats.Hourly, r.OccurredAt, 1)
	}
	stats.UniqueUsers24h = int64(len(users))
	return stats, nil
}

// DeleteBatch implements Store.
func (s *MemoryStore) DeleteBatch(_ context.Context, logType LogType, before time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for i := range s.records {
		r := s.records[i]
		if r.LogType == logType && r.OccurredAt.Before(before) && (limit <= 0 || deleted < int64(limit)) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return deleted, nil
}

// Len returns the number of records held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes all records (for testing).
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}
