package storage

import (
	"errors"
	"fmt"
)

var (
	// Creation errors

	// ErrCollision if an item already exists within the store.
	ErrCollision = errors.New("item already exists")

	// Read errors

	ErrInvalidContinuationToken = errors.New("invalid continuation token")

	// Write errors

	// ErrDuplicateAttribute if a record carries two attributes with the same code and kind.
	ErrDuplicateAttribute = errors.New("duplicate attribute")
	// ErrVersionConflict if the caller's expected version does not match the stored version.
	ErrVersionConflict = errors.New("record was modified concurrently")

	// Shared errors

	ErrNotFound = errors.New("not found")
)

func DuplicateAttributeError(code string, kind AttributeKind) error {
	return fmt.Errorf("attribute with code '%s' and kind '%s' is specified more than once: %w", code, kind, ErrDuplicateAttribute)
}

func RecordNotFoundError(id string) error {
	return fmt.Errorf("record '%s': %w", id, ErrNotFound)
}

func VersionConflictError(id string, expected, actual int64) error {
	return fmt.Errorf("record '%s' expected version %d but found %d: %w", id, expected, actual, ErrVersionConflict)
}
