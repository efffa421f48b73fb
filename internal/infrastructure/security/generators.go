// Package security provides token and identifier utilities
package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// GenerateULID generates a new ULID string.
func GenerateULID() string {
	return ulid.Make().String()
}

// GenerateVisitorID generates a fresh visitor identity for clients that did
// not supply one. UUIDv4 to match the ids widget clients generate locally.
func GenerateVisitorID() string {
	return uuid.NewString()
}

// GenerateSecureKey creates a cryptographically secure random key and returns
// it as a hex string. Used for the JWT secret when none is configured.
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length/2) // Each byte becomes two hex characters
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
