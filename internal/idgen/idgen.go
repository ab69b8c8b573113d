// Package idgen provides unique ID generation: short URL-safe record IDs
// backed by nanoid, and UUIDv4 object IDs for activities whose source message
// carried none.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// Record ID prefixes.
const (
	PrefixActivity  = "act-"
	PrefixRejection = "rej-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 12

// Generate returns a new unique record ID for an accepted activity.
func Generate() (string, error) {
	return GenerateWithPrefix(PrefixActivity)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// NewObjectID returns a random UUIDv4 string.
func NewObjectID() string {
	return uuid.NewString()
}

// NewWithPrefix is GenerateWithPrefix that falls back to a UUID when the
// random source fails.
func NewWithPrefix(prefix string) string {
	id, err := GenerateWithPrefix(prefix)
	if err != nil {
		return prefix + uuid.NewString()
	}
	return id
}
