// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"database/sql"

	"github.com/goccy/go-json"
)

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scannedRecord holds raw scanned values from a SQL store.
type scannedRecord struct {
	record   Record
	logType  string
	level    string
	userID   sql.NullInt64
	action   sql.NullString
	ctrl     sql.NullString
	reqID    sql.NullString
	ip       sql.NullString
	context  sql.NullString
	metadata sql.NullString
}

// scanDestinations returns pointers in recordColumns order.
func (d *scannedRecord) scanDestinations() []interface{} {
	return []interface{}{
		&d.record.ID,
		&d.logType,
		&d.level,
		&d.record.Message,
		&d.userID,
		&d.action,
		&d.ctrl,
		&d.reqID,
		&d.ip,
		&d.context,
		&d.metadata,
		&d.record.OccurredAt,
		&d.record.CreatedAt,
	}
}

// toRecord converts scanned data to a Record.
func (d *scannedRecord) toRecord() *Record {
	d.record.LogType = LogType(d.logType)
	d.record.Level = Level(d.level)
	if d.userID.Valid {
		id := d.userID.Int64
		d.record.UserID = &id
	}
	d.record.Action = d.action.String
	d.record.Controller = d.ctrl.String
	d.record.RequestID = d.reqID.String
	d.record.IPAddress = d.ip.String
	if d.context.Valid && d.context.String != "" {
		d.record.Context = json.RawMessage(d.context.String)
	}
	if d.metadata.Valid && d.metadata.String != "" {
		d.record.Metadata = json.RawMessage(d.metadata.String)
	}
	return &d.record
}

func scanRecord(row rowScanner) (*Record, error) {
	var data scannedRecord
	if err := row.Scan(data.scanDestinations()...); err != nil {
		return nil, err
	}
	return data.toRecord(), nil
}

// insertParams returns bind values in recordColumns order.
func insertParams(r *Record) []interface{} {
	var userID interface{}
	if r.UserID != nil {
		userID = *r.UserID
	}
	return []interface{}{
		r.ID,
		string(r.LogType),
		string(r.Level),
		r.Message,
		userID,
		nullableString(r.Action),
		nullableString(r.Controller),
		nullableString(r.RequestID),
		nullableString(r.IPAddress),
		jsonText(r.Context),
		jsonText(r.Metadata),
		r.OccurredAt,
		r.CreatedAt,
	}
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// jsonText converts a payload for a JSON column.
func jsonText(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
