// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package auth

import (
	_ "embed"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/tomtom215/tracklog/internal/logging"
)

//go:embed rbac_model.conf
var rbacModel string

//go:embed rbac_policy.csv
var rbacPolicy string

// Policy decides which roles may call which routes, using Casbin RBAC
// with keyMatch2 path patterns.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

// NewPolicy loads the embedded model and policy.
func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create rbac enforcer: %w", err)
	}
	if err := loadPolicy(enforcer, rbacPolicy); err != nil {
		return nil, err
	}
	return &Policy{enforcer: enforcer}, nil
}

// loadPolicy adds "p" and "g" lines of a Casbin policy CSV. Casbin's file
// adapter needs a path, and the policy ships inside the binary.
func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Allowed reports whether id may call method on path. A nil identity is
// never allowed.
func (p *Policy) Allowed(id *Identity, path, method string) (bool, error) {
	if id == nil {
		return false, nil
	}
	allowed, err := p.enforcer.Enforce(id.Role(), path, method)
	if err != nil {
		return false, fmt.Errorf("enforce rbac policy: %w", err)
	}
	return allowed, nil
}

// Require rejects requests the policy does not allow: 401 when anonymous,
// 403 otherwise. Enforcement errors deny. It expects Identify earlier in
// the chain.
func (p *Policy) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := FromContext(r.Context())
		if id == nil {
			http.Error(w, "Unauthorized: authentication required", http.StatusUnauthorized)
			return
		}

		allowed, err := p.Allowed(id, r.URL.Path, r.Method)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization check failed")
		}
		if !allowed {
			logging.Ctx(r.Context()).Warn().
				Int64("user_id", id.UserID).
				Str("role", id.Role()).
				Str("path", r.URL.Path).
				Msg("Access denied")
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var defaultPolicy = sync.OnceValues(NewPolicy)

// DefaultPolicy returns the shared embedded policy.
func DefaultPolicy() (*Policy, error) {
	return defaultPolicy()
}
