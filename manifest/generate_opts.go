package manifest

import (
	"log/slog"

	"github.com/meigma/arctool/internal/arctype"
)

type (
	// ProgressEvent represents a progress update during generation.
	ProgressEvent = arctype.ProgressEvent

	// ProgressFunc receives progress updates during generation.
	ProgressFunc = arctype.ProgressFunc
)

// Progress stages reported by Generate.
const (
	StageEnumerating = arctype.StageEnumerating
	StageHashing     = arctype.StageHashing
)

// generateConfig holds configuration for manifest generation.
type generateConfig struct {
	hashFunction string
	workers      int
	skip         []string
	logger       *slog.Logger
	progress     ProgressFunc
}

// GenerateOption configures manifest generation.
type GenerateOption func(*generateConfig)

// GenerateWithHashFunction selects the hash function recorded in the manifest.
// The default is DefaultHashFunction.
func GenerateWithHashFunction(name string) GenerateOption {
	return func(cfg *generateConfig) {
		cfg.hashFunction = name
	}
}

// GenerateWithWorkers bounds the number of files hashed concurrently.
// Zero uses GOMAXPROCS. Values < 0 force serial hashing.
func GenerateWithWorkers(n int) GenerateOption {
	return func(cfg *generateConfig) {
		cfg.workers = n
	}
}

// GenerateWithSkip excludes top-level entries of the payload root by name.
// It is used when the payload root is the dataset directory itself, so that
// the control directory and header files are not recorded as payload.
func GenerateWithSkip(names ...string) GenerateOption {
	return func(cfg *generateConfig) {
		cfg.skip = append(cfg.skip, names...)
	}
}

// GenerateWithLogger sets the logger for generation.
func GenerateWithLogger(logger *slog.Logger) GenerateOption {
	return func(cfg *generateConfig) {
		cfg.logger = logger
	}
}

// GenerateWithProgress registers a callback for progress events.
// The callback may be invoked from several goroutines at once.
func GenerateWithProgress(fn ProgressFunc) GenerateOption {
	return func(cfg *generateConfig) {
		cfg.progress = fn
	}
}
