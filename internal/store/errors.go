package store

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every task store backend.
var (
	// ErrNotFound is the root of every not-found error.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a record with the same id already exists.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when the database rejects a row, for
	// example by a check constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidTransition is returned when a status update is not permitted
	// from the record's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStoreClosed is returned by stores that have been shut down.
	ErrStoreClosed = errors.New("store is closed")

	// ErrTaskNotFound matches ErrNotFound.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)
)
