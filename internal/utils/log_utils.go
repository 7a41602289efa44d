// Package utils holds small helpers shared across packages
package utils

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxLogStringLength defines the maximum length for user-provided strings in logs
const MaxLogStringLength = 200

// printable matches any character that's not a letter, number, punctuation, symbol or whitespace
var printable = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{S}\p{Z}]`)

// SanitizeLogString sanitizes a user-controlled string for safe logging.
// It replaces control characters, limits string length, and escapes format specifiers.
func SanitizeLogString(input string) string {
	if input == "" {
		return ""
	}

	if len(input) > MaxLogStringLength {
		input = input[:MaxLogStringLength] + "... (truncated)"
	}

	// Pre-process CRLF to avoid double spaces
	input = strings.ReplaceAll(input, "\r\n", "\n")

	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input)

	sanitized = strings.ReplaceAll(sanitized, "%", "%%")

	return printable.ReplaceAllString(sanitized, "")
}

// SanitizeLogList sanitizes each value and joins them with commas
func SanitizeLogList[S ~string](values []S) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = SanitizeLogString(string(v))
	}
	return strings.Join(parts, ",")
}
