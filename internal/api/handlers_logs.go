// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package api

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/cache"
	"github.com/tomtom215/tracklog/internal/logging"
	"github.com/tomtom215/tracklog/internal/websocket"
)

const (
	// DefaultStatsTTL is how long dashboard statistics are cached.
	DefaultStatsTTL = 30 * time.Second

	// MaxExportRows caps a CSV export.
	MaxExportRows = 10000
)

// exportColumns is the CSV header row.
var exportColumns = []string{
	"id", "occurred_at", "log_type", "level", "message", "user_id", "action",
	"controller", "request_id", "ip_address", "context", "metadata", "created_at",
}

// LogHandlers serves the admin log endpoints.
type LogHandlers struct {
	store   applog.Store
	cache   *cache.Cache[*applog.Stats]
	hub     *websocket.Hub
	origins []string
	now     func() time.Time
}

// NewLogHandlers creates the handlers. hub may be nil, in which case the
// stream endpoint answers 503.
func NewLogHandlers(store applog.Store, hub *websocket.Hub, origins []string, statsTTL time.Duration) *LogHandlers {
	if statsTTL <= 0 {
		statsTTL = DefaultStatsTTL
	}
	return &LogHandlers{
		store:   store,
		cache:   cache.New[*applog.Stats](statsTTL, time.Minute),
		hub:     hub,
		origins: origins,
		now:     time.Now,
	}
}

// Close stops the stats cache janitor.
func (h *LogHandlers) Close() {
	h.cache.Stop()
}

// ListLogs handles GET /api/v1/admin/logs
// Returns one page of records, newest first.
func (h *LogHandlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	filter, verr := parseLogQuery(r.URL.Query(), h.now(), true)
	if verr != nil {
		rw.ValidationError(verr)
		return
	}

	records, err := h.store.Query(ctx, filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	total, err := h.store.Count(ctx, filter)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to count log records")
		total = int64(filter.Offset + len(records))
	}

	rw.SuccessWithPagination(records, &PaginationMeta{
		Total:   total,
		Count:   len(records),
		Page:    filter.Offset/filter.Limit + 1,
		PerPage: filter.Limit,
		HasMore: int64(filter.Offset+len(records)) < total,
	})
}

// GetLog handles GET /api/v1/admin/logs/{id}
func (h *LogHandlers) GetLog(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	if id == "" {
		rw.BadRequest("Log id is required")
		return
	}

	record, err := h.store.Get(r.Context(), id)
	if errors.Is(err, applog.ErrNotFound) {
		rw.NotFound("Log record not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(record)
}

// GetStats handles GET /api/v1/admin/logs/stats
// Totals and the 24 hour volume are cached for DefaultStatsTTL.
func (h *LogHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	key := cache.GenerateKey("GetStats", nil)

	if stats, ok := h.cache.Get(key); ok {
		rw.Success(stats)
		return
	}

	stats, err := h.store.Stats(r.Context(), h.now())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	h.cache.Set(key, stats)
	rw.Success(stats)
}

// ExportLogs handles GET /api/v1/admin/logs/export
// Writes the filtered records as CSV, newest first, capped at MaxExportRows.
func (h *LogHandlers) ExportLogs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	filter, verr := parseLogQuery(r.URL.Query(), h.now(), false)
	if verr != nil {
		rw.ValidationError(verr)
		return
	}
	filter.Limit = MaxExportRows

	records, err := h.store.Query(ctx, filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	filename := "logs-" + h.now().UTC().Format("20060102-150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(exportColumns)
	for i := range records {
		if err := cw.Write(csvRow(&records[i])); err != nil {
			// Headers are already sent; the client sees a truncated file.
			logging.Ctx(ctx).Warn().Err(err).Int("rows_written", i).Msg("CSV export aborted")
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("CSV export flush failed")
	}
}

// StreamLogs handles GET /api/v1/admin/logs/stream
// Upgrades to a websocket that receives each persisted record.
func (h *LogHandlers) StreamLogs(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Live tail is not enabled")
		return
	}
	websocket.ServeWS(h.hub, h.origins)(w, r)
}

func csvRow(rec *applog.Record) []string {
	userID := ""
	if rec.UserID != nil {
		userID = strconv.FormatInt(*rec.UserID, 10)
	}
	createdAt := ""
	if !rec.CreatedAt.IsZero() {
		createdAt = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return []string{
		rec.ID,
		rec.OccurredAt.UTC().Format(time.RFC3339Nano),
		string(rec.LogType),
		string(rec.Level),
		csvSafe(rec.Message),
		userID,
		csvSafe(rec.Action),
		csvSafe(rec.Controller),
		csvSafe(rec.RequestID),
		rec.IPAddress,
		csvSafe(string(rec.Context)),
		csvSafe(string(rec.Metadata)),
		createdAt,
	}
}

// csvSafe neutralizes cells that spreadsheet applications would evaluate
// as formulas. Record text is attacker-influenced.
func csvSafe(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
