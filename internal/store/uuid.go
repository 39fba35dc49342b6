package store

import "github.com/google/uuid"

// GenerateUUID returns a new random UUID string. Used for row IDs on
// dialects without a database-side UUID default (SQLite).
func GenerateUUID() string {
	return uuid.New().String()
}
