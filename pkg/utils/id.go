package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID returns a new opaque identifier (attachment file ids).
func GenerateID() string {
	return uuid.New().String()
}

// GenerateAccessToken returns an unguessable token used to gate chat
// attachment downloads.
func GenerateAccessToken() string {
	return strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
}

// IsUUID checks if the string is a valid UUID
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
