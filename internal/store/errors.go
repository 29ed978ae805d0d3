package store

import "fmt"

// ValidationError reports a locally rejected write. It is surfaced
// synchronously to the caller and never reaches the remote backend.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// MigrationError reports a failed schema upgrade. It is fatal: a store that
// cannot migrate does not open.
type MigrationError struct {
	Version int
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration to version %d failed: %v", e.Version, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }
