package arctool

import (
	"context"
	"log/slog"

	"github.com/meigma/arctool/archive"
	"github.com/meigma/arctool/dataset"
	"github.com/meigma/arctool/manifest"
)

// config holds options shared by the package-level functions.
type config struct {
	logger       *slog.Logger
	progress     ProgressFunc
	hashFunction string
}

// Option configures the package-level functions.
type Option func(*config)

// WithLogger sets the logger passed to the underlying packages.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithProgress registers a callback for progress events.
func WithProgress(fn ProgressFunc) Option {
	return func(cfg *config) {
		cfg.progress = fn
	}
}

// WithHashFunction selects the manifest hash function for GenerateManifest
// and pins the expected one for OpenArchive.
func WithHashFunction(name string) Option {
	return func(cfg *config) {
		cfg.hashFunction = name
	}
}

func newConfig(opts []Option) config {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// GenerateManifest regenerates the manifest of the dataset at datasetPath
// from its payload and writes it into the dataset's control directory.
func GenerateManifest(ctx context.Context, datasetPath string, opts ...Option) error {
	cfg := newConfig(opts)
	ds, err := dataset.Open(datasetPath, dataset.WithLogger(cfg.logger))
	if err != nil {
		return err
	}
	genOpts := []manifest.GenerateOption{manifest.GenerateWithProgress(cfg.progress)}
	if cfg.hashFunction != "" {
		genOpts = append(genOpts, manifest.GenerateWithHashFunction(cfg.hashFunction))
	}
	_, err = ds.UpdateManifest(ctx, genOpts...)
	return err
}

// BuildArchive writes the dataset at datasetPath as <outputDir>/<name>.tar
// and returns the tar's absolute path.
func BuildArchive(ctx context.Context, datasetPath, outputDir string, opts ...Option) (string, error) {
	cfg := newConfig(opts)
	b, err := archive.NewBuilder(datasetPath,
		archive.BuildWithLogger(cfg.logger),
		archive.BuildWithProgress(cfg.progress))
	if err != nil {
		return "", err
	}
	return b.PersistToTar(ctx, outputDir)
}

// CompressArchive gzips the tar at tarPath, removes the tar once the
// compressed file is in place, and returns the compressed file's absolute
// path.
func CompressArchive(ctx context.Context, tarPath string, opts ...Option) (string, error) {
	cfg := newConfig(opts)
	return archive.Compress(ctx, tarPath, archive.CompressWithLogger(cfg.logger))
}

// OpenArchive opens a raw or gzip-compressed archive.
// The caller must Close it.
func OpenArchive(path string, opts ...Option) (*archive.Archive, error) {
	cfg := newConfig(opts)
	openOpts := []archive.OpenOption{
		archive.OpenWithLogger(cfg.logger),
		archive.OpenWithProgress(cfg.progress),
	}
	if cfg.hashFunction != "" {
		openOpts = append(openOpts, archive.OpenWithHashFunction(cfg.hashFunction))
	}
	return archive.Open(path, openOpts...)
}

// VerifyAll reports whether every file in a's manifest hashes to its
// recorded value.
func VerifyAll(ctx context.Context, a *archive.Archive) bool {
	return a.VerifyAll(ctx)
}

// Summarise reports a's identity and recorded file count and size.
func Summarise(a *archive.Archive) archive.Summary {
	return a.Summarise()
}
