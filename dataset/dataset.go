package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meigma/arctool/manifest"
)

// Dataset is a dataset directory with loaded administrative metadata.
type Dataset struct {
	dir    string
	admin  AdminMetadata
	logger *slog.Logger
}

// Open loads the dataset rooted at dir.
//
// Missing or malformed administrative metadata is an ErrConfiguration error.
func Open(dir string, opts ...Option) (*Dataset, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrIO, dir, err)
	}
	admin, err := ReadAdminMetadata(filepath.Join(abs, filepath.FromSlash(AdminMetadataFile)))
	if err != nil {
		return nil, err
	}
	return &Dataset{dir: abs, admin: admin, logger: cfg.logger}, nil
}

func (d *Dataset) log() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.New(slog.DiscardHandler)
}

// Path returns the absolute dataset directory.
func (d *Dataset) Path() string { return d.dir }

// Name returns the dataset name from administrative metadata.
func (d *Dataset) Name() string { return d.admin.Name }

// AdminMetadata returns the dataset's administrative metadata.
func (d *Dataset) AdminMetadata() AdminMetadata { return d.admin }

// PayloadRoot returns the absolute path of the payload directory.
func (d *Dataset) PayloadRoot() string {
	return filepath.Join(d.dir, filepath.FromSlash(d.admin.ManifestRoot))
}

// AdminMetadataPath returns the absolute path of the administrative metadata file.
func (d *Dataset) AdminMetadataPath() string {
	return filepath.Join(d.dir, filepath.FromSlash(AdminMetadataFile))
}

// ManifestPath returns the absolute path of the manifest file.
func (d *Dataset) ManifestPath() string {
	return filepath.Join(d.dir, filepath.FromSlash(ManifestFile))
}

// ReadmePath returns the absolute path of the descriptive metadata file.
func (d *Dataset) ReadmePath() string {
	return filepath.Join(d.dir, ReadmeFile)
}

// Manifest reads the dataset's manifest file.
// A missing or undecodable manifest is an ErrConfiguration error.
func (d *Dataset) Manifest() (*manifest.Manifest, error) {
	m, err := manifest.Read(d.ManifestPath())
	if err != nil {
		return nil, fmt.Errorf("%w: manifest %s: %w", ErrConfiguration, d.ManifestPath(), err)
	}
	return m, nil
}

// DescriptiveMetadata reads and decodes README.yml.
func (d *Dataset) DescriptiveMetadata() (map[string]any, error) {
	return ReadReadme(d.ReadmePath())
}

// UpdateManifest regenerates the manifest from the payload root and writes
// it atomically, replacing any previous manifest.
//
// When the payload root is the dataset directory itself the control
// directory and README.yml are excluded from the manifest.
func (d *Dataset) UpdateManifest(ctx context.Context, opts ...manifest.GenerateOption) (*manifest.Manifest, error) {
	genOpts := []manifest.GenerateOption{manifest.GenerateWithLogger(d.logger)}
	if filepath.Clean(d.admin.ManifestRoot) == "." {
		genOpts = append(genOpts, manifest.GenerateWithSkip(ControlDir, ReadmeFile))
	}
	genOpts = append(genOpts, opts...)

	m, err := manifest.Generate(ctx, d.PayloadRoot(), genOpts...)
	if err != nil {
		return nil, err
	}
	m.FormatVersion = FormatVersion
	if err := m.WriteFile(d.ManifestPath()); err != nil {
		return nil, fmt.Errorf("%w: write manifest %s: %w", ErrIO, d.ManifestPath(), err)
	}
	d.log().Debug("manifest updated",
		"path", d.ManifestPath(),
		"file_count", m.Len(),
		"total_size", m.TotalSize())
	return m, nil
}

// Equal reports whether two datasets share administrative metadata.
func (d *Dataset) Equal(other *Dataset) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.admin == other.admin
}

// ensureDir creates dir with parents, wrapping failures as ErrIO.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIO, dir, err)
	}
	return nil
}
