// Package arctype holds sentinel errors and progress types shared by the
// arctool packages.
package arctype

import "errors"

// Sentinel errors for archive operations.
var (
	// ErrConfiguration is returned when administrative metadata or the manifest
	// is missing or malformed before an operation that requires it.
	ErrConfiguration = errors.New("arctool: configuration error")

	// ErrIO is returned when a filesystem operation fails.
	ErrIO = errors.New("arctool: i/o error")

	// ErrNotFound is returned when a payload path is absent from an archive.
	ErrNotFound = errors.New("arctool: not found")

	// ErrFormat is returned when an archive is not a valid tar or gzip-wrapped
	// tar, or declares an unrecognized hash function.
	ErrFormat = errors.New("arctool: format error")
)
