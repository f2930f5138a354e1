// Package logutil formats HTTP traffic of the suite's API clients for debug
// logs without leaking tokens, API keys or fixture passwords.
package logutil

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"
)

const redacted = "[REDACTED]"

// IsSensitiveLogField reports whether a header, query or JSON key likely
// holds a secret.
func IsSensitiveLogField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch {
	case normalized == "authorization":
		return true
	case strings.Contains(normalized, "token"):
		return true
	case strings.Contains(normalized, "secret"):
		return true
	case strings.Contains(normalized, "password"):
		return true
	case strings.Contains(normalized, "apikey"):
		return true
	case strings.Contains(normalized, "cookie"):
		return true
	default:
		return false
	}
}

// FormatHeadersForLog returns stable, redacted header text for logs.
func FormatHeadersForLog(headers http.Header) string {
	if len(headers) == 0 {
		return "{}"
	}

	parts := make([]string, 0, len(headers))
	for _, k := range slices.Sorted(maps.Keys(headers)) {
		values := headers.Values(k)
		if len(values) == 0 {
			parts = append(parts, fmt.Sprintf("%s=<empty>", strings.ToLower(k)))
			continue
		}
		shown := strings.Join(values, ", ")
		if IsSensitiveLogField(k) {
			shown = redacted
		}
		parts = append(parts, fmt.Sprintf("%s=%q", strings.ToLower(k), shown))
	}
	return strings.Join(parts, "; ")
}

// RedactURL returns the URL string with sensitive query values replaced.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	query := u.Query()
	if len(query) == 0 {
		return u.String()
	}
	for k := range query {
		if IsSensitiveLogField(k) {
			query.Set(k, redacted)
		}
	}
	clone := *u
	clone.RawQuery = query.Encode()
	return clone.String()
}

// RedactJSON redacts sensitive fields in a JSON document at any depth.
// Non-JSON input is returned unchanged.
func RedactJSON(body []byte) string {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return string(body)
	}
	redactValue(payload)
	safe, err := json.Marshal(payload)
	if err != nil {
		return string(body)
	}
	return string(safe)
}

func redactValue(v any) {
	switch typed := v.(type) {
	case map[string]any:
		for k, child := range typed {
			if IsSensitiveLogField(k) {
				typed[k] = redacted
				continue
			}
			redactValue(child)
		}
	case []any:
		for _, child := range typed {
			redactValue(child)
		}
	}
}

// FormatBodyForLog redacts and then truncates a request or response body.
// JSON that cannot be parsed is replaced by a placeholder so a malformed
// body never leaks secret values.
func FormatBodyForLog(contentType string, body []byte, maxBytes int) string {
	if len(body) == 0 {
		return ""
	}
	text := string(body)
	if strings.Contains(strings.ToLower(contentType), "json") {
		if !json.Valid(body) {
			return fmt.Sprintf("[unparsable json, %d bytes]", len(body))
		}
		text = RedactJSON(body)
	}
	if maxBytes > 0 && len(text) > maxBytes {
		return truncateRunes(text, maxBytes) + " [truncated]"
	}
	return text
}

// TruncateForLog returns a single-line truncated preview.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.Join(strings.Fields(trimmed), " ")
	if maxChars <= 0 || len(normalized) <= maxChars {
		return normalized
	}
	return truncateRunes(normalized, maxChars) + "... [truncated]"
}

// truncateRunes cuts s to at most maxBytes without splitting a rune.
func truncateRunes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
