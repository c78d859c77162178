// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

// Package auth resolves the caller of a request to an Identity.
//
// Sign-in and sessions belong to the application in front of this service;
// here a signed HS256 JWT (Authorization: Bearer, or the "token" cookie)
// carries the user id in "sub", the role in "role" and the billing state in
// "subscription_status". The request logger only ever records the id, the
// role and the subscription status.
//
// Identify attaches the identity to the request context without rejecting
// anonymous traffic; RequireAdmin guards the admin log API.
package auth
