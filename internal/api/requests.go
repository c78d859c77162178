// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package api

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/validation"
)

// logQueryParams is the raw, validated form of the log list query string.
type logQueryParams struct {
	Types      []string `validate:"dive,log_type"`
	Levels     []string `validate:"dive,log_level"`
	UserID     string   `validate:"omitempty,number"`
	Since      string   `validate:"omitempty,since_window"`
	From       string   `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To         string   `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Action     string   `validate:"max=255"`
	Controller string   `validate:"max=255"`
	Search     string   `validate:"max=255"`
	IPAddress  string   `validate:"omitempty,ip"`
	RequestID  string   `validate:"max=128"`
	Page       int      `validate:"min=1"`
	PerPage    int      `validate:"min=1,max=200"`
}

// parseLogQuery builds a Filter from the list and export query string.
// Pagination is applied only when paginate is set.
func parseLogQuery(q url.Values, now time.Time, paginate bool) (applog.Filter, *validation.RequestValidationError) {
	params := logQueryParams{
		Types:      listParam(q, "type"),
		Levels:     listParam(q, "level"),
		UserID:     strings.TrimSpace(q.Get("user_id")),
		Since:      strings.ToLower(strings.TrimSpace(q.Get("since"))),
		From:       strings.TrimSpace(q.Get("from")),
		To:         strings.TrimSpace(q.Get("to")),
		Action:     strings.TrimSpace(q.Get("action")),
		Controller: strings.TrimSpace(q.Get("controller")),
		Search:     strings.TrimSpace(q.Get("q")),
		IPAddress:  strings.TrimSpace(q.Get("ip")),
		RequestID:  strings.TrimSpace(q.Get("request_id")),
		Page:       intParam(q, "page", 1),
		PerPage:    min(intParam(q, "per_page", applog.DefaultPerPage), applog.MaxPerPage),
	}
	if err := validation.ValidateStruct(&params); err != nil {
		return applog.Filter{}, err
	}

	filter := applog.Filter{
		Action:     params.Action,
		Controller: params.Controller,
		Search:     params.Search,
		IPAddress:  params.IPAddress,
		RequestID:  params.RequestID,
	}
	for _, t := range params.Types {
		filter.Types = append(filter.Types, applog.LogType(t))
	}
	for _, l := range params.Levels {
		filter.Levels = append(filter.Levels, applog.Level(l))
	}
	if params.UserID != "" {
		// number has been validated; only overflow can fail here.
		if id, err := strconv.ParseInt(params.UserID, 10, 64); err == nil {
			filter.UserID = &id
		}
	}
	if params.From != "" {
		from, _ := time.Parse(time.RFC3339, params.From)
		filter.From = &from
	}
	if params.To != "" {
		to, _ := time.Parse(time.RFC3339, params.To)
		filter.To = &to
	}
	if params.Since != "" {
		window, _ := applog.ParseSince(params.Since)
		since := now.Add(-window)
		// The narrower lower bound wins when both since and from are given.
		if filter.From == nil || since.After(*filter.From) {
			filter.From = &since
		}
	}

	if paginate {
		filter.Paginate(params.Page, params.PerPage)
	}
	return filter, nil
}

// listParam accepts both repeated and comma separated values.
func listParam(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// intParam returns def for a missing value and 0 for a malformed one, so
// validation reports it.
func intParam(q url.Values, key string, def int) int {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
