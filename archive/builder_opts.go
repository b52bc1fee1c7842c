package archive

import "log/slog"

// buildConfig holds configuration for archive building.
type buildConfig struct {
	overwrite bool
	logger    *slog.Logger
	progress  ProgressFunc
}

// BuildOption configures a Builder.
type BuildOption func(*buildConfig)

// BuildWithOverwrite controls whether PersistToTar replaces an existing tar
// file. The default is true. When false an existing file is an ErrIO error
// wrapping fs.ErrExist.
func BuildWithOverwrite(overwrite bool) BuildOption {
	return func(cfg *buildConfig) {
		cfg.overwrite = overwrite
	}
}

// BuildWithLogger sets the logger for archive building.
func BuildWithLogger(logger *slog.Logger) BuildOption {
	return func(cfg *buildConfig) {
		cfg.logger = logger
	}
}

// BuildWithProgress registers a callback invoked after each entry is written.
func BuildWithProgress(fn ProgressFunc) BuildOption {
	return func(cfg *buildConfig) {
		cfg.progress = fn
	}
}
