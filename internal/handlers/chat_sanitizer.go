package handlers

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Message length limits
const (
	MaxMessageLength = 8000
	MinMessageLength = 1
)

// Dangerous patterns for XSS prevention
var (
	scriptTagRegex = regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`)
	onEventRegex   = regexp.MustCompile(`(?i)\s+on\w+\s*=`)
)

// SanitizeMessageBody cleans and validates message text before it is stored.
// Attachment-only messages skip this entirely; callers pass the raw text and
// receive either a sanitized body or a validation error.
func SanitizeMessageBody(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", errors.New("message cannot be empty")
	}

	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", errors.New("message exceeds maximum length")
	}

	// Remove script tags
	content = scriptTagRegex.ReplaceAllString(content, "")

	// Remove inline event handlers (onclick, onload, etc.)
	content = onEventRegex.ReplaceAllString(content, " ")

	// Escape HTML entities to prevent XSS
	content = html.EscapeString(content)

	content = strings.TrimSpace(content)

	if content == "" {
		return "", errors.New("message cannot be empty after sanitization")
	}

	return content, nil
}
