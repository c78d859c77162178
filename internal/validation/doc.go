// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

// Package validation wraps go-playground/validator v10 with a shared,
// thread-safe instance and the log-domain tags used by configuration and
// the admin log API:
//
//   - log_type: one of the closed set of log types
//   - log_level: one of debug, info, warning, error, fatal
//   - since_window: a since shorthand (15m, 1h, 6h, 24h, 3d, 7d, 30d)
//   - cron_schedule: a standard cron expression or descriptor (@daily)
//
// Example usage:
//
//	type listParams struct {
//	    Type    string `validate:"omitempty,log_type"`
//	    PerPage int    `validate:"min=1,max=200"`
//	}
//
//	if err := validation.ValidateStruct(&params); err != nil {
//	    apiErr := err.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
//	    return
//	}
package validation
