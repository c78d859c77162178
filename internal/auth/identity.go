// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package auth

import (
	"context"
	"errors"
	"net/http"
)

// Roles carried in the role claim.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ErrNoCredentials is returned by a Resolver when the request carries no
// token at all.
var ErrNoCredentials = errors.New("no credentials")

// Identity is the authenticated caller.
type Identity struct {
	UserID             int64
	Admin              bool
	SubscriptionStatus string
}

// Role returns "admin" or "user".
func (i *Identity) Role() string {
	if i.Admin {
		return RoleAdmin
	}
	return RoleUser
}

// Resolver identifies the caller of a request.
type Resolver interface {
	Resolve(r *http.Request) (*Identity, error)
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity stored by Identify, or nil.
func FromContext(ctx context.Context) *Identity {
	if ctx == nil {
		return nil
	}
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}
