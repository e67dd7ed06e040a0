package domain

import "errors"

var (
	// ErrInvalidArgument is returned when an operation is called with neither
	// a valid page nor the all-pages flag
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPageNotFound is returned when a page cannot be resolved
	ErrPageNotFound = errors.New("page not found")
)
