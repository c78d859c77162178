// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"fmt"
	"strings"
	"time"
)

// Pagination limits for Filter.
const (
	DefaultPerPage = 50
	MaxPerPage     = 200
)

// Filter selects records for Query and Count. Zero values match everything.
type Filter struct {
	Types      []LogType
	Levels     []Level
	UserID     *int64
	Action     string
	Controller string
	RequestID  string
	IPAddress  string

	// Search matches a case-insensitive substring of the message.
	Search string

	// From and To bound occurred_at, both inclusive.
	From *time.Time
	To   *time.Time

	// Limit and Offset page the result. Results are always newest first.
	Limit  int
	Offset int
}

// Matches reports whether r satisfies every criterion of f.
//
//nolint:gocyclo // complexity inherent to multi-criteria filter matching
func (f *Filter) Matches(r *Record) bool {
	if len(f.Types) > 0 && !contains(f.Types, r.LogType) {
		return false
	}
	if len(f.Levels) > 0 && !contains(f.Levels, r.Level) {
		return false
	}
	if f.UserID != nil && (r.UserID == nil || *r.UserID != *f.UserID) {
		return false
	}
	if f.Action != "" && r.Action != f.Action {
		return false
	}
	if f.Controller != "" && r.Controller != f.Controller {
		return false
	}
	if f.RequestID != "" && r.RequestID != f.RequestID {
		return false
	}
	if f.IPAddress != "" && r.IPAddress != f.IPAddress {
		return false
	}
	if f.From != nil && r.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && r.OccurredAt.After(*f.To) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(r.Message), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// Paginate sets Limit and Offset from a 1-based page number, clamping
// perPage to [1, MaxPerPage].
func (f *Filter) Paginate(page, perPage int) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page < 1 {
		page = 1
	}
	f.Limit = perPage
	f.Offset = (page - 1) * perPage
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// sinceWindows are the accepted values of the since query parameter.
var sinceWindows = map[string]time.Duration{
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"24h": 24 * time.Hour,
	"3d":  3 * 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// ParseSince converts a since shorthand (15m, 1h, 6h, 24h, 3d, 7d, 30d)
// into a duration.
func ParseSince(s string) (time.Duration, error) {
	d, ok := sinceWindows[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unsupported since value %q", s)
	}
	return d, nil
}

// HourBucket is one hour of record volume.
type HourBucket struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

// Stats summarizes the store for the admin dashboard.
type Stats struct {
	Total          int64            `json:"total"`
	Errors         int64            `json:"errors"`
	Warnings       int64            `json:"warnings"`
	Last24h        int64            `json:"last_24h"`
	UniqueUsers24h int64            `json:"unique_users_24h"`
	ByType         map[string]int64 `json:"by_type"`
	Hourly         []HourBucket     `json:"hourly"`
}

// emptyHourly returns 24 zeroed buckets ending with the hour containing now.
func emptyHourly(now time.Time) []HourBucket {
	end := now.UTC().Truncate(time.Hour)
	buckets := make([]HourBucket, 24)
	for i := range buckets {
		buckets[i].Hour = end.Add(time.Duration(i-23) * time.Hour)
	}
	return buckets
}

// addToHourly increments the bucket for t, ignoring times outside the range.
func addToHourly(buckets []HourBucket, t time.Time, n int64) {
	if len(buckets) == 0 {
		return
	}
	idx := int(t.UTC().Truncate(time.Hour).Sub(buckets[0].Hour) / time.Hour)
	if idx >= 0 && idx < len(buckets) {
		buckets[idx].Count += n
	}
}
