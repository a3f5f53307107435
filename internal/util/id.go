package util

import "github.com/google/uuid"

// NewID returns a random UUID string. Persisted records use the same id
// format the managed database would generate server-side.
func NewID() string {
	return uuid.NewString()
}
