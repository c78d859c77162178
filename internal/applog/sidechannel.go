// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"sync"

	"github.com/rs/zerolog"
)

// SideChannel is the always-available textual logger. It receives entries
// that are not persisted (logging disabled, filtered by the allow-list) and
// every failure of the persistence path itself.
type SideChannel interface {
	Write(level Level, message string, attrs map[string]any)
}

// ZerologSideChannel writes side-channel entries through zerolog.
type ZerologSideChannel struct {
	logger zerolog.Logger
}

// NewZerologSideChannel wraps logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewZerologSideChannel(logger zerolog.Logger) *ZerologSideChannel {
	return &ZerologSideChannel{logger: logger}
}

// Write implements SideChannel. Fatal entries are written at zerolog's fatal
// level without exiting the process.
func (s *ZerologSideChannel) Write(level Level, message string, attrs map[string]any) {
	var event *zerolog.Event
	switch level {
	case LevelDebug:
		event = s.logger.Debug()
	case LevelInfo:
		event = s.logger.Info()
	case LevelWarning:
		event = s.logger.Warn()
	case LevelError:
		event = s.logger.Error()
	case LevelFatal:
		event = s.logger.WithLevel(zerolog.FatalLevel)
	default:
		event = s.logger.Info()
	}
	if len(attrs) > 0 {
		event = event.Fields(attrs)
	}
	event.Msg(message)
}

// SideEntry is one entry captured by RecordingSideChannel.
type SideEntry struct {
	Level   Level
	Message string
	Attrs   map[string]any
}

// RecordingSideChannel keeps every entry in memory. Tests use it to assert
// on fallback output.
type RecordingSideChannel struct {
	mu      sync.Mutex
	entries []SideEntry
}

// NewRecordingSideChannel creates an empty recorder.
func NewRecordingSideChannel() *RecordingSideChannel {
	return &RecordingSideChannel{}
}

// Write implements SideChannel.
func (r *RecordingSideChannel) Write(level Level, message string, attrs map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, SideEntry{Level: level, Message: message, Attrs: attrs})
}

// Entries returns a copy of everything written so far.
func (r *RecordingSideChannel) Entries() []SideEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SideEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of captured entries.
func (r *RecordingSideChannel) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Find returns the first entry with the given message.
func (r *RecordingSideChannel) Find(message string) (SideEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Message == message {
			return e, true
		}
	}
	return SideEntry{}, false
}
