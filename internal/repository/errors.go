package repository

import "errors"

var (
	// ErrConflict is returned when an optimistic write loses to a concurrent writer
	ErrConflict = errors.New("concurrent update conflict")
	// ErrNotFound is returned by writes that target a row which does not exist
	ErrNotFound = errors.New("not found")
)
