// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package botfilter

import "context"

// EdgeResponse records that the edge (bot filter or rate limiter) answered a
// request itself. Loggers wrapping the edge consult it so blocked and
// throttled traffic never reaches the log store.
type EdgeResponse struct {
	answered bool
	reason   string
}

// Answered reports whether the edge answered the request.
func (e *EdgeResponse) Answered() bool {
	return e != nil && e.answered
}

// Reason is the block or throttle reason, "" when not answered.
func (e *EdgeResponse) Reason() string {
	if e == nil {
		return ""
	}
	return e.reason
}

type edgeResponseKey struct{}

// TrackEdgeResponse returns a context that carries a fresh EdgeResponse.
// The outermost middleware that cares about edge answers installs it.
func TrackEdgeResponse(ctx context.Context) (context.Context, *EdgeResponse) {
	if existing, ok := ctx.Value(edgeResponseKey{}).(*EdgeResponse); ok {
		return ctx, existing
	}
	e := &EdgeResponse{}
	return context.WithValue(ctx, edgeResponseKey{}, e), e
}

// EdgeResponseFrom returns the tracker in ctx, or nil.
func EdgeResponseFrom(ctx context.Context) *EdgeResponse {
	e, _ := ctx.Value(edgeResponseKey{}).(*EdgeResponse)
	return e
}

// MarkEdgeResponse flags the request as answered at the edge. It is a no-op
// when nothing upstream is tracking.
func MarkEdgeResponse(ctx context.Context, reason string) {
	if e := EdgeResponseFrom(ctx); e != nil {
		e.answered = true
		e.reason = reason
	}
}
