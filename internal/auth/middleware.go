// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package auth

import (
	"errors"
	"net/http"

	"github.com/tomtom215/tracklog/internal/logging"
)

// Identify resolves the caller and stores the identity in the request
// context. Anonymous and invalid credentials pass through without one.
func Identify(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				next.ServeHTTP(w, r)
				return
			}
			id, err := resolver.Resolve(r)
			if err != nil {
				if !errors.Is(err, ErrNoCredentials) {
					logging.Ctx(r.Context()).Debug().Err(err).Msg("Ignoring invalid credentials")
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin applies DefaultPolicy, which grants the admin routes to
// the admin role only: 401 when anonymous, 403 otherwise. It expects
// Identify earlier in the chain.
func RequireAdmin(next http.Handler) http.Handler {
	policy, err := DefaultPolicy()
	if err != nil {
		// The policy is embedded; failing to load it is a build defect.
		panic(err)
	}
	return policy.Require(next)
}
