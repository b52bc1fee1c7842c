package archive

import "log/slog"

// DefaultMaxHeaderSize bounds the bytes read into memory for each header
// entry when no OpenWithMaxHeaderSize option is given.
const DefaultMaxHeaderSize = 64 << 20

// openConfig holds configuration for opening an archive.
type openConfig struct {
	hashFunction  string
	maxHeaderSize uint64
	logger        *slog.Logger
	progress      ProgressFunc
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

// OpenWithHashFunction requires the archive's manifest to use the named hash
// function. A manifest declaring a different one is an ErrFormat error.
func OpenWithHashFunction(name string) OpenOption {
	return func(cfg *openConfig) {
		cfg.hashFunction = name
	}
}

// OpenWithMaxHeaderSize limits how many bytes of each header entry are read
// into memory. Larger entries are an ErrFormat error.
func OpenWithMaxHeaderSize(n uint64) OpenOption {
	return func(cfg *openConfig) {
		cfg.maxHeaderSize = n
	}
}

// OpenWithLogger sets the logger for the archive.
func OpenWithLogger(logger *slog.Logger) OpenOption {
	return func(cfg *openConfig) {
		cfg.logger = logger
	}
}

// OpenWithProgress registers a callback invoked as Verify hashes each file.
func OpenWithProgress(fn ProgressFunc) OpenOption {
	return func(cfg *openConfig) {
		cfg.progress = fn
	}
}
