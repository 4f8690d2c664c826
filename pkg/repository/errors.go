package repository

import (
	"errors"
	"fmt"
)

// Sentinel errors for repository configuration
var (
	// ErrNoKeyField is returned when an entity type has no resolvable key
	// field (no `pk` tag option and no field named ID)
	ErrNoKeyField = errors.New("entity has no key field")

	// ErrInvalidEntityType is returned when the generic type parameter is
	// not a struct type
	ErrInvalidEntityType = errors.New("entity type must be a struct")

	// ErrInvalidKeyKind is returned when the resolved key field is not an
	// integer kind
	ErrInvalidKeyKind = errors.New("entity key field must be an integer")
)

// Error wraps a failure from the underlying execution layer with enough
// context to identify the table and operation. Not-found and zero rows
// affected are never represented as an Error.
type Error struct {
	Table string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("repository %s: %s: %v", e.Table, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNoKeyField checks if an error is ErrNoKeyField
func IsNoKeyField(err error) bool {
	return errors.Is(err, ErrNoKeyField)
}

// AsError extracts a repository *Error from an error chain
func AsError(err error) (*Error, bool) {
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return repoErr, true
	}
	return nil, false
}
