// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package botfilter

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// UnknownFingerprint is reported when no client address is available.
const UnknownFingerprint = "unknown"

// Headers set by the CDN in front of the application, in order of preference.
const (
	HeaderCFConnectingIP = "CF-Connecting-IP"
	HeaderTrueClientIP   = "True-Client-IP"
)

// ClientIP returns the real client address, preferring the CDN headers over
// the socket address.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get(HeaderCFConnectingIP)); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get(HeaderTrueClientIP)); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// Fingerprinter hashes client addresses with a server secret so they can be
// correlated across log lines without being stored.
type Fingerprinter struct {
	secret string
}

// NewFingerprinter creates a Fingerprinter salted with secret.
func NewFingerprinter(secret string) *Fingerprinter {
	return &Fingerprinter{secret: secret}
}

// FingerprintIP returns the first 8 hex characters of sha256(secret:ip).
func (f *Fingerprinter) FingerprintIP(ip string) string {
	if ip == "" {
		return UnknownFingerprint
	}
	sum := sha256.Sum256([]byte(f.secret + ":" + ip))
	return hex.EncodeToString(sum[:4])
}

// Fingerprint identifies the client of r.
func (f *Fingerprinter) Fingerprint(r *http.Request) string {
	return f.FingerprintIP(ClientIP(r))
}
