package arctool

import "github.com/meigma/arctool/internal/arctype"

// Errors shared by every arctool package.
var (
	// ErrConfiguration is returned when a dataset's administrative metadata,
	// manifest, README.yml or payload root is missing or malformed.
	ErrConfiguration = arctype.ErrConfiguration

	// ErrIO is returned when a filesystem operation fails.
	ErrIO = arctype.ErrIO

	// ErrNotFound is returned when a payload path is absent from an archive.
	ErrNotFound = arctype.ErrNotFound

	// ErrFormat is returned when a file is not a valid dataset archive or
	// names an unknown hash function.
	ErrFormat = arctype.ErrFormat
)
