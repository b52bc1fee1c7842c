package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"

	"github.com/meigma/arctool/internal/atomicfile"
	"github.com/meigma/arctool/manifest"
)

// payloadReadme is written to the payload root of every new dataset.
const payloadReadme = `Place the files of this dataset in this directory.

Regenerate the manifest after adding, changing or removing files, then
build the archive from the dataset directory.
`

// config holds options shared by Open, Create and CreateProject.
type config struct {
	creator string
	logger  *slog.Logger
}

// Option configures dataset operations.
type Option func(*config)

// CreateWithCreator records username as the creator of a new dataset.
// The default is the current operating system user.
func CreateWithCreator(username string) Option {
	return func(cfg *config) {
		cfg.creator = username
	}
}

// WithLogger sets the logger for dataset operations.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

func (cfg *config) creatorName() string {
	if cfg.creator != "" {
		return cfg.creator
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

// Create scaffolds a new dataset directory named after meta.DatasetName
// inside parent.
//
// The directory receives administrative metadata with a fresh UUID,
// README.yml holding meta, a payload root with an explanatory README.txt and
// a manifest covering that payload. The target directory must not already
// exist.
func Create(ctx context.Context, parent string, meta DescriptiveMetadata, opts ...Option) (*Dataset, error) {
	if meta.DatasetName == "" {
		return nil, fmt.Errorf("%w: dataset name is required", ErrConfiguration)
	}
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	dir, err := newDir(parent, meta.DatasetName)
	if err != nil {
		return nil, err
	}
	admin := NewAdminMetadata(meta.DatasetName, TypeDataset, cfg.creatorName())
	d := &Dataset{dir: dir, admin: admin, logger: cfg.logger}

	if err := ensureDir(filepath.Join(dir, ControlDir)); err != nil {
		return nil, err
	}
	if err := writeAdminMetadata(d.AdminMetadataPath(), admin); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", ErrIO, d.AdminMetadataPath(), err)
	}
	if err := writeReadme(d.ReadmePath(), meta); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", ErrIO, d.ReadmePath(), err)
	}
	if err := ensureDir(d.PayloadRoot()); err != nil {
		return nil, err
	}
	txt := filepath.Join(d.PayloadRoot(), "README.txt")
	if err := atomicfile.WriteFile(txt, []byte(payloadReadme), 0o644); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", ErrIO, txt, err)
	}
	if _, err := d.UpdateManifest(ctx, manifest.GenerateWithWorkers(-1)); err != nil {
		return nil, err
	}

	d.log().Info("dataset created", "path", dir, "uuid", admin.UUID)
	return d, nil
}

// CreateProject scaffolds a collection directory named name inside parent.
// Datasets belonging to the project are then created inside it.
func CreateProject(parent, name string, opts ...Option) (*Dataset, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrConfiguration)
	}
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	dir, err := newDir(parent, name)
	if err != nil {
		return nil, err
	}
	admin := NewAdminMetadata(name, TypeCollection, cfg.creatorName())
	d := &Dataset{dir: dir, admin: admin, logger: cfg.logger}

	if err := ensureDir(filepath.Join(dir, ControlDir)); err != nil {
		return nil, err
	}
	if err := writeAdminMetadata(d.AdminMetadataPath(), admin); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", ErrIO, d.AdminMetadataPath(), err)
	}
	if err := writeReadme(d.ReadmePath(), DescriptiveMetadata{ProjectName: name}); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", ErrIO, d.ReadmePath(), err)
	}

	d.log().Info("project created", "path", dir, "uuid", admin.UUID)
	return d, nil
}

// newDir creates parent/name, failing if it already exists.
func newDir(parent, name string) (string, error) {
	if filepath.Base(name) != name || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid name %q", ErrConfiguration, name)
	}
	abs, err := filepath.Abs(filepath.Join(parent, name))
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %w", ErrIO, name, err)
	}
	if err := ensureDir(filepath.Dir(abs)); err != nil {
		return "", err
	}
	if err := os.Mkdir(abs, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s already exists: %w", ErrIO, abs, err)
		}
		return "", fmt.Errorf("%w: create %s: %w", ErrIO, abs, err)
	}
	return abs, nil
}
