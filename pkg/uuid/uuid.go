// Package uuid provides time-ordered identifiers for rows created by the gateway.
// UUID v7 sorts by creation time, which keeps sqlite primary-key indexes append-mostly.
package uuid

import (
	"fmt"

	guuid "github.com/google/uuid"
)

// UUID represents a UUID v7 identifier.
type UUID = guuid.UUID

// NewV7 generates a new UUID v7.
// Falls back to a random v4 only if the system clock or entropy source fails.
func NewV7() UUID {
	id, err := guuid.NewV7()
	if err != nil {
		return guuid.New()
	}
	return id
}

// NewString returns NewV7 in canonical form: xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
func NewString() string {
	return NewV7().String()
}

// Parse validates s as a canonical UUID string.
func Parse(s string) (UUID, error) {
	id, err := guuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("uuid: parse %q: %w", s, err)
	}
	return id, nil
}
