// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package botfilter

import (
	"regexp"
	"strings"

	"github.com/tomtom215/tracklog/internal/cache"
)

// fastBlockPrefixes are probe paths answered with 410 Gone.
var fastBlockPrefixes = []string{
	"/wp-admin/",
	"/wp-login.php",
	"/wp-content/",
	"/wp-includes/",
	"/wordpress/",
	"/xmlrpc.php",
	"/index.php",
	"/admin.php",
	"/config.php",
	"/setup-config.php",
	"/install.php",
	"/phpinfo.php",
	"/info.php",
	"/phpmyadmin/",
	"/pma/",
	"/mysql/",
	"/sql/",
	"/.env",
	"/.git/",
	"/backup/",
	"/tmp/",
	"/cgi-bin/",
}

// exemptPrefix skips slow-tier path and user agent checks (ACME challenges,
// security.txt).
const exemptPrefix = "/.well-known/"

// blockedPaths are the slow-tier path patterns (case-sensitive, like the
// routes they protect).
var blockedPaths = regexp.MustCompile(`^/blog/wp-|^/administrator|^/admin/config|^/old|^/test/|^/demo/|^/sftp-config\.json|\.bak$|\.sql$|\.log$`)

// suspiciousQuery catches traversal, XSS, SQL injection and code execution
// attempts in the query string.
var suspiciousQuery = regexp.MustCompile(`(?i)\.\./|<script|javascript:|union.*select|drop.*table|insert.*into|delete.*from|exec\(|system\(|passthru\(|base64_decode|eval\(|file_get_contents`)

// blockedAgentSignatures identify HTTP libraries and scanners.
var blockedAgentSignatures = []string{
	"python-requests",
	"curl/",
	"wget",
	"Go-http-client",
	"libwww-perl",
	"Apache-HttpClient",
	"okhttp",
	"Symfony",
	"zgrab",
	"masscan",
	"nmap",
	"sqlmap",
	"nikto",
	"dirb",
	"gobuster",
	"dirbuster",
}

// legitimateAgentSignatures identify browsers and link-preview crawlers,
// which are never blocked by signature.
var legitimateAgentSignatures = []string{
	"Mozilla/",
	"Chrome/",
	"Safari/",
	"Edge/",
	"Firefox/",
	"Googlebot",
	"bingbot",
	"facebookexternalhit",
	"Twitterbot",
	"LinkedInBot",
	"WhatsApp",
	"Slackbot",
	"Discordbot",
	"TelegramBot",
}

var (
	blockedAgents    = cache.NewMatcher(blockedAgentSignatures)
	legitimateAgents = cache.NewMatcher(legitimateAgentSignatures)
)

func fastBlocked(path string) bool {
	for _, prefix := range fastBlockPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// blockedPath reports a slow-tier path match.
func blockedPath(path string) bool {
	if strings.HasPrefix(path, exemptPrefix) {
		return false
	}
	return blockedPaths.MatchString(path)
}

// blockedAgent reports a scanner user agent. Empty and legitimate agents
// pass.
func blockedAgent(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return false
	}
	if legitimateAgents.Contains(userAgent) {
		return false
	}
	return blockedAgents.Contains(userAgent)
}

// suspiciousParams checks the raw query and, when it differs, its decoded
// form.
func suspiciousParams(rawQuery, decoded string) bool {
	if rawQuery == "" {
		return false
	}
	if suspiciousQuery.MatchString(rawQuery) {
		return true
	}
	return decoded != rawQuery && suspiciousQuery.MatchString(decoded)
}
