// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// MissingMessage replaces a message that is empty after truncation.
const MissingMessage = "Log message missing"

// Record is one persisted log entry. Records are immutable once created:
// the store only inserts and deletes them.
type Record struct {
	// ID is empty until the record has been written to the store.
	ID         string          `json:"id,omitempty"`
	LogType    LogType         `json:"log_type"`
	Level      Level           `json:"level"`
	Message    string          `json:"message"`
	UserID     *int64          `json:"user_id,omitempty"`
	Action     string          `json:"action,omitempty"`
	Controller string          `json:"controller,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	IPAddress  string          `json:"ip_address,omitempty"`
	Context    json.RawMessage `json:"context,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`

	// OccurredAt is the business timestamp, captured when Log was called.
	OccurredAt time.Time `json:"occurred_at"`

	// CreatedAt is set by the store on insert.
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Persisted reports whether the record has been written.
func (r *Record) Persisted() bool {
	return r != nil && r.ID != ""
}

// Attributes flattens the record for side-channel diagnostics.
func (r *Record) Attributes() map[string]any {
	attrs := map[string]any{
		"log_type":    string(r.LogType),
		"level":       string(r.Level),
		"message":     r.Message,
		"occurred_at": r.OccurredAt,
	}
	if r.UserID != nil {
		attrs["user_id"] = *r.UserID
	}
	if r.Action != "" {
		attrs["action"] = r.Action
	}
	if r.Controller != "" {
		attrs["controller"] = r.Controller
	}
	if r.RequestID != "" {
		attrs["request_id"] = r.RequestID
	}
	if r.IPAddress != "" {
		attrs["ip_address"] = r.IPAddress
	}
	if len(r.Context) > 0 {
		attrs["context"] = r.Context
	}
	if len(r.Metadata) > 0 {
		attrs["metadata"] = r.Metadata
	}
	return attrs
}

// assignID gives the record a time-ordered id prior to insert.
func (r *Record) assignID() {
	if r.ID != "" {
		return
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	r.ID = id.String()
}

// Entry is the input to Logger.Log. Only LogType, Level and Message are
// required; everything else is optional.
type Entry struct {
	LogType    string
	Level      string
	Message    string
	UserID     *int64
	Action     string
	Controller string
	RequestID  string
	IPAddress  string
	Context    any
	Metadata   any
}

// UserIDPtr is a small helper for Entry.UserID.
func UserIDPtr(id int64) *int64 {
	return &id
}
