package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a report is not found.
	ErrNotFound = errors.New("report not found")

	// ErrEmptyContent is returned when saving a report with no text.
	ErrEmptyContent = errors.New("report content is empty")
)
