package archive

import (
	"log/slog"

	"github.com/klauspost/compress/gzip"
)

// Compression levels accepted by CompressWithLevel.
const (
	DefaultCompression = gzip.DefaultCompression
	BestSpeed          = gzip.BestSpeed
	BestCompression    = gzip.BestCompression
)

// DefaultBlockSize is the block size used for parallel compression.
const DefaultBlockSize = 1 << 20

// compressConfig holds configuration for Compress and Decompress.
type compressConfig struct {
	level       int
	concurrency int
	logger      *slog.Logger
}

// CompressOption configures Compress and Decompress.
type CompressOption func(*compressConfig)

// CompressWithLevel sets the gzip compression level.
// The default is DefaultCompression.
func CompressWithLevel(level int) CompressOption {
	return func(cfg *compressConfig) {
		cfg.level = level
	}
}

// CompressWithConcurrency compresses n blocks of DefaultBlockSize bytes in
// parallel. Values <= 1 use a single-threaded encoder. The output is a
// standard gzip stream either way.
func CompressWithConcurrency(n int) CompressOption {
	return func(cfg *compressConfig) {
		cfg.concurrency = n
	}
}

// CompressWithLogger sets the logger for compression.
func CompressWithLogger(logger *slog.Logger) CompressOption {
	return func(cfg *compressConfig) {
		cfg.logger = logger
	}
}

func (cfg *compressConfig) log() *slog.Logger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return slog.New(slog.DiscardHandler)
}
