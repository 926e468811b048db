package logging

import (
	"regexp"
	"strings"
)

const (
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
	// maskRune replaces the hidden characters of a masked identity value
	maskRune = '*'
)

var (
	// Pattern to match potential passwords in connection strings
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)

	// National insurance numbers embedded in free text (e.g. constraint violation details)
	ninoPattern = regexp.MustCompile(`(?i)\b[A-CEGHJ-PR-TW-Z]{2}\s?\d{2}\s?\d{2}\s?\d{2}\s?[A-D]\b`)
)

// SanitizeConnectionString removes sensitive data from connection strings
// Use this before logging any connection string
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// SanitizeError sanitizes error messages that might contain credentials or
// identity values. Use this before logging any error from database operations.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	sanitized = ninoPattern.ReplaceAllString(sanitized, RedactedText)

	return sanitized
}

// MaskValue hides an identity value (name, date of birth, NI number) for logs,
// keeping only the first and last characters and the length.
func MaskValue(value string) string {
	runes := []rune(value)
	if len(runes) <= 2 {
		return strings.Repeat(string(maskRune), len(runes))
	}

	masked := make([]rune, len(runes))
	masked[0] = runes[0]
	for i := 1; i < len(runes)-1; i++ {
		masked[i] = maskRune
	}
	masked[len(runes)-1] = runes[len(runes)-1]
	return string(masked)
}
