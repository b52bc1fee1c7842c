package archive

import "github.com/meigma/arctool/internal/arctype"

// Sentinel errors re-exported from internal/arctype.
var (
	// ErrConfiguration is returned when a dataset directory lacks required
	// metadata files or a payload root.
	ErrConfiguration = arctype.ErrConfiguration

	// ErrIO is returned when reading or writing an archive file fails.
	ErrIO = arctype.ErrIO

	// ErrNotFound is returned when a payload path is absent from an archive.
	ErrNotFound = arctype.ErrNotFound

	// ErrFormat is returned when a file is not a tar or gzip-compressed tar,
	// or its header entries are missing, misordered or undecodable.
	ErrFormat = arctype.ErrFormat
)

type (
	// ProgressEvent represents a progress update during archiving or verification.
	ProgressEvent = arctype.ProgressEvent

	// ProgressFunc receives progress updates.
	ProgressFunc = arctype.ProgressFunc
)

// Progress stages reported by this package.
const (
	StageArchiving = arctype.StageArchiving
	StageVerifying = arctype.StageVerifying
)
