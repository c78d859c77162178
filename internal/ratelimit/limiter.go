// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/botfilter"
	"github.com/tomtom215/tracklog/internal/logging"
	"github.com/tomtom215/tracklog/internal/metrics"
)

// ThrottledBody is the body of a 429 response.
const ThrottledBody = "Rate limit exceeded. Please try again later."

// counterTimeout bounds one counter round trip.
const counterTimeout = 250 * time.Millisecond

// Decision is the outcome of checking one request. ResetAt is when the
// throttling rule's window ends.
type Decision struct {
	Throttled bool
	Rule      Rule
	Count     int
	ResetAt   time.Time
}

// Limiter applies rules to requests.
type Limiter struct {
	counter     Counter
	rules       []Rule
	fingerprint *botfilter.Fingerprinter
	logger      zerolog.Logger
	now         func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithFingerprinter sets how clients are keyed.
func WithFingerprinter(fp *botfilter.Fingerprinter) Option {
	return func(l *Limiter) { l.fingerprint = fp }
}

// WithLogger sets the logger for throttle events and counter errors.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter over counter. A nil rules slice uses DefaultRules.
func New(counter Counter, rules []Rule, opts ...Option) *Limiter {
	if rules == nil {
		rules = DefaultRules()
	}
	l := &Limiter{
		counter:     counter,
		rules:       rules,
		fingerprint: botfilter.NewFingerprinter(""),
		logger:      logging.WithComponent("ratelimit"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check counts r against every matching rule in order and stops at the first
// one whose fixed-window count exceeds its limit. Counter errors skip the
// rule.
func (l *Limiter) Check(ctx context.Context, r *http.Request, fingerprint string) Decision {
	now := l.now()
	for _, rule := range l.rules {
		if !rule.Match(r) {
			continue
		}

		key := rule.Name + ":" + fingerprint
		cctx, cancel := context.WithTimeout(ctx, counterTimeout)
		count, err := l.counter.IncrementAndGet(cctx, key, rule.Window, now)
		cancel()
		if err != nil {
			metrics.RecordCounterError()
			l.logger.Warn().Err(err).Str("rule", rule.Name).Msg("Rate limit counter failed, allowing request")
			continue
		}

		if count > rule.Limit {
			return Decision{Throttled: true, Rule: rule, Count: count, ResetAt: windowEnd(now, rule.Window)}
		}
	}
	return Decision{}
}

// Handler wraps next with the limiter.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp := l.fingerprint.Fingerprint(r)
		decision := l.safeCheck(r, fp)
		if !decision.Throttled {
			next.ServeHTTP(w, r)
			return
		}

		botfilter.MarkEdgeResponse(r.Context(), "rate_limited:"+decision.Rule.Name)
		metrics.RecordThrottle(decision.Rule.Name)
		l.logger.Warn().
			Str("rule", decision.Rule.Name).
			Str("ip_hash", fp).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Str("user_agent", applog.TruncateBytes(userAgent(r), 120)).
			Msg("Rate limited")
		l.writeThrottled(w, decision)
	})
}

func (l *Limiter) safeCheck(r *http.Request, fp string) (d Decision) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error().Interface("panic", rec).Msg("Rate limiter failed, allowing request")
			d = Decision{}
		}
	}()
	return l.Check(r.Context(), r, fp)
}

// writeThrottled answers 429. Retry-After is the rule's period, which is
// never shorter than the time left in the window, and X-RateLimit-Reset is
// the window end, so a client that waits for either is admitted again.
func (l *Limiter) writeThrottled(w http.ResponseWriter, d Decision) {
	period := int64(d.Rule.Window / time.Second)
	if period <= 0 {
		period = 1
	}
	reset := d.ResetAt.Unix()
	if d.ResetAt.Nanosecond() != 0 {
		reset++
	}

	h := w.Header()
	h.Set("Content-Type", "text/plain")
	h.Set("Retry-After", strconv.FormatInt(period, 10))
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Rule.Limit))
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(ThrottledBody))
}

func userAgent(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return "unknown"
}
