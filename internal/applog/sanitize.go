// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// markerOverhead approximates the bytes used by the truncation marker
// without its preview: {"bytesize":N,"preview":"","truncated":true}.
const markerOverhead = 48

// TruncateBytes drops invalid UTF-8 and NUL bytes from s, then cuts it to
// at most maxBytes bytes without splitting a rune. The result is always
// storable in a Postgres TEXT column.
func TruncateBytes(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	s = scrub(s)
	if len(s) <= maxBytes {
		return s
	}
	return strings.ToValidUTF8(s[:maxBytes], "")
}

func scrub(s string) string {
	if utf8.ValidString(s) && strings.IndexByte(s, 0) < 0 {
		return s
	}
	return strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\x00", "")
}

// escapedNUL is how the JSON encoder writes a NUL byte. Postgres JSONB
// rejects it.
var escapedNUL = []byte(`\u0000`)

// stripJSONNUL removes NUL characters from every string and key of an
// encoded document. It only pays for a decode when the escape is present.
func stripJSONNUL(encoded []byte) []byte {
	if !bytes.Contains(encoded, escapedNUL) {
		return encoded
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return encoded
	}
	cleaned, err := json.Marshal(stripNUL(doc))
	if err != nil {
		return encoded
	}
	return cleaned
}

func stripNUL(v any) any {
	switch t := v.(type) {
	case string:
		return strings.ReplaceAll(t, "\x00", "")
	case []any:
		for i := range t {
			t[i] = stripNUL(t[i])
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[strings.ReplaceAll(k, "\x00", "")] = stripNUL(val)
		}
		return out
	default:
		return v
	}
}

// Sanitize bounds an arbitrary payload to maxBytes of serialized JSON.
//
// Containers (maps, slices, arrays, structs) that fit are returned as-is.
// Oversized containers become a marker object carrying the original size
// and a byte-accurate preview. Scalars are truncated as strings. Sanitize
// never panics: a payload that cannot be serialized yields
// {"truncated": true, "error": "serialization_failed"}.
func Sanitize(payload any, maxBytes int) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = serializationFailed()
		}
	}()

	switch v := payload.(type) {
	case nil:
		return map[string]any{}
	case string:
		return TruncateBytes(v, maxBytes)
	case []byte:
		return TruncateBytes(string(v), maxBytes)
	case json.RawMessage:
		if !json.Valid(v) {
			return serializationFailed()
		}
		if len(v) <= maxBytes {
			return v
		}
		return truncationMarker(v, maxBytes)
	case error:
		return TruncateBytes(v.Error(), maxBytes)
	}

	if isScalar(payload) {
		s := fmt.Sprint(payload)
		if len(s) <= maxBytes {
			return payload
		}
		return TruncateBytes(s, maxBytes)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return serializationFailed()
	}
	if len(encoded) <= maxBytes {
		return payload
	}
	return truncationMarker(encoded, maxBytes)
}

// SanitizeJSON returns the serialized form of Sanitize(payload, maxBytes).
// The result is always valid JSON and never longer than maxBytes once
// maxBytes leaves room for the truncation marker.
func SanitizeJSON(payload any, maxBytes int) (out json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			out = mustMarshal(serializationFailed())
		}
	}()

	encoded, err := json.Marshal(Sanitize(payload, maxBytes))
	if err != nil {
		return mustMarshal(serializationFailed())
	}
	encoded = stripJSONNUL(encoded)
	if len(encoded) > maxBytes {
		// Scalars grow by quoting and escaping once encoded.
		return mustMarshal(truncationMarker(encoded, maxBytes))
	}
	return encoded
}

// truncationMarker builds the replacement object for an oversized payload.
// The preview shrinks until the encoded marker fits in maxBytes.
func truncationMarker(encoded []byte, maxBytes int) map[string]any {
	budget := maxBytes - markerOverhead
	for range 8 {
		if budget < 0 {
			budget = 0
		}
		marker := map[string]any{
			"truncated": true,
			"bytesize":  len(encoded),
			"preview":   TruncateBytes(string(encoded), budget),
		}
		out, err := json.Marshal(marker)
		if err != nil {
			return serializationFailed()
		}
		if len(out) <= maxBytes || budget == 0 {
			return marker
		}
		budget -= len(out) - maxBytes
	}
	return map[string]any{
		"truncated": true,
		"bytesize":  len(encoded),
		"preview":   "",
	}
}

func serializationFailed() map[string]any {
	return map[string]any{
		"truncated": true,
		"error":     "serialization_failed",
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}

func isScalar(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	default:
		return false
	}
}
