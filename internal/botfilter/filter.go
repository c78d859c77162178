// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package botfilter

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/metrics"
)

// Action is the outcome of classifying a request.
type Action int

const (
	// Allow passes the request on.
	Allow Action = iota
	// BlockGone answers 410 Gone (fast tier).
	BlockGone
	// BlockNotFound answers 404 Not Found (slow tier).
	BlockNotFound
)

// Block reasons.
const (
	ReasonFastBlockedPath  = "fast_blocked_path"
	ReasonBlockedPath      = "blocked_path"
	ReasonBlockedUserAgent = "blocked_user_agent"
	ReasonSuspiciousParams = "suspicious_params"
)

// userAgentLogBytes caps the user agent written to the logs.
const userAgentLogBytes = 120

// Verdict is the result of Classify.
type Verdict struct {
	Action Action
	Reason string
}

// Blocked reports whether the request is rejected.
func (v Verdict) Blocked() bool {
	return v.Action != Allow
}

// Tier names the blocking tier for metrics.
func (v Verdict) Tier() string {
	switch v.Action {
	case BlockGone:
		return "fast"
	case BlockNotFound:
		return "slow"
	default:
		return ""
	}
}

// Config controls the filter.
type Config struct {
	Enabled bool
}

// Filter is the bot and probe filter middleware.
type Filter struct {
	config      Config
	fingerprint *Fingerprinter
	logger      zerolog.Logger
}

// New creates a Filter. Fingerprints in log lines use fp.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(cfg Config, fp *Fingerprinter, logger zerolog.Logger) *Filter {
	if fp == nil {
		fp = NewFingerprinter("")
	}
	return &Filter{config: cfg, fingerprint: fp, logger: logger}
}

// Classify decides what to do with r. It has no side effects.
func (f *Filter) Classify(r *http.Request) Verdict {
	path := r.URL.Path

	if fastBlocked(path) {
		return Verdict{Action: BlockGone, Reason: ReasonFastBlockedPath}
	}

	exempt := strings.HasPrefix(path, exemptPrefix)
	if !exempt && blockedPath(path) {
		return Verdict{Action: BlockNotFound, Reason: ReasonBlockedPath}
	}
	if !exempt && blockedAgent(r.UserAgent()) {
		return Verdict{Action: BlockNotFound, Reason: ReasonBlockedUserAgent}
	}

	raw := r.URL.RawQuery
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		decoded = raw
	}
	if suspiciousParams(raw, decoded) {
		return Verdict{Action: BlockNotFound, Reason: ReasonSuspiciousParams}
	}

	return Verdict{Action: Allow}
}

// Handler wraps next with the filter. A failure inside the classifier lets
// the request through.
func (f *Filter) Handler(next http.Handler) http.Handler {
	if !f.config.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verdict := f.safeClassify(r)

		if verdict.Blocked() {
			MarkEdgeResponse(r.Context(), verdict.Reason)
		}
		switch verdict.Action {
		case BlockGone:
			f.logFastBlock(r, verdict)
			metrics.RecordBotBlock(verdict.Tier())
			writeBlocked(w, http.StatusGone, "Gone")
		case BlockNotFound:
			f.logSlowBlock(r, verdict)
			metrics.RecordBotBlock(verdict.Tier())
			writeBlocked(w, http.StatusNotFound, "Not Found")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (f *Filter) safeClassify(r *http.Request) (v Verdict) {
	defer func() {
		if rec := recover(); rec != nil {
			f.logger.Error().
				Interface("panic", rec).
				Str("path", r.URL.Path).
				Msg("Bot filter classification failed, allowing request")
			v = Verdict{Action: Allow}
		}
	}()
	return f.Classify(r)
}

// logFastBlock keeps the fast path cheap: reason and fingerprint only.
func (f *Filter) logFastBlock(r *http.Request, v Verdict) {
	f.logger.Info().
		Str("reason", v.Reason).
		Str("ip", f.fingerprint.Fingerprint(r)).
		Msg("Bot probe fast-blocked")
}

func (f *Filter) logSlowBlock(r *http.Request, v Verdict) {
	ua := r.UserAgent()
	if ua == "" {
		ua = "unknown"
	}
	f.logger.Info().
		Str("reason", v.Reason).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("ip", f.fingerprint.Fingerprint(r)).
		Str("ua", applog.TruncateBytes(ua, userAgentLogBytes)).
		Msg("Bot request blocked")
}

func writeBlocked(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
