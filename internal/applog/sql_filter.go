// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"fmt"
	"strconv"
	"strings"
)

// recordColumns is the column list shared by every SQL store, in scan order.
const recordColumns = `id, log_type, level, message, user_id, action, controller,
	request_id, ip_address, context, metadata, occurred_at, created_at`

// placeholderFunc renders the n-th (1-based) bind parameter.
type placeholderFunc func(n int) string

func questionPlaceholder(int) string { return "?" }

func dollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// sqlFilter accumulates WHERE conditions and their arguments.
type sqlFilter struct {
	ph         placeholderFunc
	conditions []string
	args       []interface{}
}

func (f *sqlFilter) next(v interface{}) string {
	f.args = append(f.args, v)
	return f.ph(len(f.args))
}

// buildSliceCondition creates a SQL IN condition for a slice of string values.
func buildSliceCondition[T ~string](f *sqlFilter, column string, values []T) {
	if len(values) == 0 {
		return
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = f.next(string(v))
	}
	f.conditions = append(f.conditions, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
}

// appendStringCondition adds a string equality condition if value is non-empty.
func (f *sqlFilter) appendStringCondition(column, value string) {
	if value != "" {
		f.conditions = append(f.conditions, column+" = "+f.next(value))
	}
}

// buildFilterConditions translates a Filter into WHERE conditions.
func buildFilterConditions(filter *Filter, ph placeholderFunc) *sqlFilter {
	f := &sqlFilter{ph: ph}

	buildSliceCondition(f, "log_type", filter.Types)
	buildSliceCondition(f, "level", filter.Levels)

	if filter.UserID != nil {
		f.conditions = append(f.conditions, "user_id = "+f.next(*filter.UserID))
	}
	f.appendStringCondition("action", filter.Action)
	f.appendStringCondition("controller", filter.Controller)
	f.appendStringCondition("request_id", filter.RequestID)
	f.appendStringCondition("ip_address", filter.IPAddress)

	if filter.From != nil {
		f.conditions = append(f.conditions, "occurred_at >= "+f.next(*filter.From))
	}
	if filter.To != nil {
		f.conditions = append(f.conditions, "occurred_at <= "+f.next(*filter.To))
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		f.conditions = append(f.conditions, "LOWER(message) LIKE "+f.next(pattern))
	}
	return f
}

// where renders the WHERE clause, or an empty string.
func (f *sqlFilter) where() string {
	if len(f.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conditions, " AND ")
}

// pageClause renders ORDER BY, LIMIT and OFFSET. Results are newest first.
func pageClause(filter *Filter) string {
	clause := " ORDER BY occurred_at DESC, id DESC"
	if filter.Limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		clause += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	return clause
}
