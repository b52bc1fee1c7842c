package arctype

// ProgressEvent represents a progress update during manifest generation,
// archive creation, or verification.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the file currently being processed, if applicable.
	Path string

	// BytesDone is the number of payload bytes completed so far.
	BytesDone uint64

	// FilesDone is the number of files completed.
	FilesDone int

	// FilesTotal is the total number of files.
	// Zero indicates the total is unknown (e.g., during enumeration).
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages.
const (
	// StageEnumerating indicates the operation is walking the directory tree.
	StageEnumerating ProgressStage = iota

	// StageHashing indicates payload files are being hashed for the manifest.
	StageHashing

	// StageArchiving indicates entries are being written to the tar stream.
	StageArchiving

	// StageVerifying indicates archived files are being re-hashed.
	StageVerifying
)

// String returns the stage name.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageHashing:
		return "hashing"
	case StageArchiving:
		return "archiving"
	case StageVerifying:
		return "verifying"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Implementations must be safe for concurrent use when passed to manifest
// generation with more than one worker.
type ProgressFunc func(ProgressEvent)
