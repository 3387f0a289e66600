package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a uniqueness or write-race check fails
	ErrConflict = errors.New("conflict: row was written by a concurrent transaction")

	// ErrForeignKeyViolation is returned when a foreign key constraint fails
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrGuardRejected is returned when a guarded UPDATE matched no row
	ErrGuardRejected = errors.New("guarded update rejected")
)
