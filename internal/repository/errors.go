package repository

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// IsNotReady reports whether an error indicates the storage schema has not
// been migrated yet. The rehydration sweep treats this as "not ready yet"
// rather than a hard failure.
func IsNotReady(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "no such table")
}
