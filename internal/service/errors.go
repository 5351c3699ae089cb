package service

import "errors"

var (
	// ErrNotTeacher is returned when the caller has no teacher record
	ErrNotTeacher = errors.New("user is not a teacher")
	// ErrForbidden is returned when a teacher asks about a student outside their classes
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for requests that fail business rules
	ErrInvalidInput = errors.New("invalid input")
)
