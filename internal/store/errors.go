package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// PersistenceError reports a record that could not be written.
// The capture engine logs it and keeps going.
type PersistenceError struct {
	Op       string
	EntityID int64
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s entity %d: %v", e.Op, e.EntityID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
