package utils

import (
	"html"
	"regexp"
	"strings"
)

// sanitize.go - input sanitization utilities

// SanitizeHTML escapes HTML entities to prevent XSS
// Use this for any user-generated content that will be displayed
func SanitizeHTML(input string) string {
	return html.EscapeString(input)
}

// StripHTML removes all HTML tags from a string
// More aggressive than SanitizeHTML - removes tags entirely
func StripHTML(input string) string {
	re := regexp.MustCompile(`<[^>]*>`)
	return re.ReplaceAllString(input, "")
}

// SanitizeFilename keeps attachment filenames displayable: strips path
// separators and control characters, truncates to 255 bytes.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	return TruncateString(name, 255)
}

// TruncateString safely truncates a string to max length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
