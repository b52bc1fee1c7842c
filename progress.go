package arctool

import "github.com/meigma/arctool/internal/arctype"

// Re-export progress types.
type (
	// ProgressEvent represents a progress update during manifest generation,
	// archiving or verification.
	ProgressEvent = arctype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = arctype.ProgressStage

	// ProgressFunc receives progress updates during operations.
	ProgressFunc = arctype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageEnumerating indicates the operation is walking the payload tree.
	StageEnumerating = arctype.StageEnumerating

	// StageHashing indicates payload files are being hashed for the manifest.
	StageHashing = arctype.StageHashing

	// StageArchiving indicates entries are being written to the tar stream.
	StageArchiving = arctype.StageArchiving

	// StageVerifying indicates archived files are being re-hashed.
	StageVerifying = arctype.StageVerifying
)
