// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package ratelimit

import (
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Rule is one named throttle.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration

	// Match selects the requests this rule counts.
	Match func(r *http.Request) bool
}

// Rule names.
const (
	RuleSuspiciousPaths = "suspicious_paths"
	RuleBotPostTargets  = "bot_post_targets"
	RuleRequestsPerIP   = "requests_per_ip"
	RuleAuthRequests    = "auth_requests"
)

var suspiciousPaths = regexp.MustCompile(`(?i)/wp-admin|/wordpress|\.php$|/xmlrpc\.php|/wp-login\.php|/admin\.php|/config\.php|/setup-config\.php`)

var botPostTargets = map[string]struct{}{
	"/":          {},
	"/admin":     {},
	"/api":       {},
	"/index.php": {},
	"/wp-admin":  {},
	"/login.php": {},
}

var authPrefixes = []string{
	"/users/sign_in",
	"/users/password",
	"/users/sign_up",
	"/users/confirmation",
}

// DefaultRules returns the production rule set, most specific first.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   RuleSuspiciousPaths,
			Limit:  5,
			Window: 30 * time.Second,
			Match: func(r *http.Request) bool {
				return suspiciousPaths.MatchString(r.URL.Path)
			},
		},
		{
			Name:   RuleBotPostTargets,
			Limit:  10,
			Window: 60 * time.Second,
			Match: func(r *http.Request) bool {
				if r.Method != http.MethodPost {
					return false
				}
				_, ok := botPostTargets[r.URL.Path]
				return ok
			},
		},
		{
			Name:   RuleRequestsPerIP,
			Limit:  100,
			Window: 60 * time.Second,
			Match:  func(*http.Request) bool { return true },
		},
		{
			Name:   RuleAuthRequests,
			Limit:  20,
			Window: 300 * time.Second,
			Match: func(r *http.Request) bool {
				if r.Method != http.MethodPost {
					return false
				}
				for _, prefix := range authPrefixes {
					if strings.HasPrefix(r.URL.Path, prefix) {
						return true
					}
				}
				return false
			},
		},
	}
}
