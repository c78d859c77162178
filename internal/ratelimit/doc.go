// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

/*
Package ratelimit throttles abusive clients with named fixed-window rules.

Each Rule matches a subset of requests and allows Limit requests per Window
for each client fingerprint. Counts live behind the Counter interface:

  - MemoryCounter keeps them in process using go-chi/httprate's local
    counter (single instance deployments and tests).
  - RedisCounter keeps them in Redis with an atomic Lua script so several
    instances share one budget.

Windows are aligned to the Unix epoch and keyed rule_name:fingerprint:start.
A request is throttled when its window's count exceeds Limit; the count
starts over at the next boundary, which is what X-RateLimit-Reset reports.

A throttled request receives 429 with Retry-After and X-RateLimit-* headers.
Counter failures never block traffic: the request is allowed and the error
is logged.
*/
package ratelimit
