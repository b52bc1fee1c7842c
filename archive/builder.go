package archive

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/meigma/arctool/dataset"
	"github.com/meigma/arctool/internal/atomicfile"
	"github.com/meigma/arctool/internal/ioutil"
	"github.com/meigma/arctool/internal/pathutil"
)

// TarSuffix is appended to the dataset name to form the archive file name.
const TarSuffix = ".tar"

// Builder writes a dataset directory as a tar archive.
//
// A Builder only reads the dataset directory.
type Builder struct {
	ds  *dataset.Dataset
	top string
	cfg buildConfig
}

// NewBuilder prepares to archive the dataset at dir.
//
// It fails with ErrConfiguration when the administrative metadata is missing
// or malformed, or when the manifest, README.yml or payload root is absent.
func NewBuilder(dir string, opts ...BuildOption) (*Builder, error) {
	cfg := buildConfig{overwrite: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	ds, err := dataset.Open(dir, dataset.WithLogger(cfg.logger))
	if err != nil {
		return nil, err
	}
	for _, p := range []string{ds.ManifestPath(), ds.ReadmePath()} {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, p, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s is not a regular file", ErrConfiguration, p)
		}
	}
	info, err := os.Stat(ds.PayloadRoot())
	if err != nil {
		return nil, fmt.Errorf("%w: payload root %s: %w", ErrConfiguration, ds.PayloadRoot(), err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: payload root %s is not a directory", ErrConfiguration, ds.PayloadRoot())
	}

	return &Builder{ds: ds, top: filepath.Base(ds.Path()), cfg: cfg}, nil
}

func (b *Builder) log() *slog.Logger {
	if b.cfg.logger != nil {
		return b.cfg.logger
	}
	return slog.New(slog.DiscardHandler)
}

// Name returns the dataset name, which is also the tar file's base name.
func (b *Builder) Name() string {
	return b.ds.Name()
}

// AdminMetadata returns the administrative metadata of the dataset.
func (b *Builder) AdminMetadata() dataset.AdminMetadata {
	return b.ds.AdminMetadata()
}

// Equal reports whether two builders archive datasets with the same
// administrative metadata.
func (b *Builder) Equal(other *Builder) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.ds.Equal(other.ds)
}

// PersistToTar writes the archive to <outDir>/<name>.tar and returns its
// absolute path.
//
// The tar is written to a temporary file and renamed into place, so the
// target path never holds a partial archive.
func (b *Builder) PersistToTar(ctx context.Context, outDir string) (string, error) {
	absDir, err := filepath.Abs(outDir)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %w", ErrIO, outDir, err)
	}
	if within(absDir, b.ds.Path()) {
		return "", fmt.Errorf("%w: output directory %s is inside dataset %s", ErrConfiguration, absDir, b.ds.Path())
	}
	target := filepath.Join(absDir, b.Name()+TarSuffix)
	if !b.cfg.overwrite {
		if _, err := os.Lstat(target); err == nil {
			return "", fmt.Errorf("%w: %s: %w", ErrIO, target, fs.ErrExist)
		}
	}

	out, err := atomicfile.Create(target, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrIO, target, err)
	}
	bw := bufio.NewWriterSize(out, ioutil.DefaultBufferSize)
	if err := b.WriteTar(ctx, bw); err != nil {
		_ = out.Discard() //nolint:errcheck // best-effort cleanup
		return "", err
	}
	if err := bw.Flush(); err != nil {
		_ = out.Discard() //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("%w: write %s: %w", ErrIO, target, err)
	}
	if err := out.Commit(); err != nil {
		return "", fmt.Errorf("%w: commit %s: %w", ErrIO, target, err)
	}

	b.log().Info("archive written", "path", target)
	return target, nil
}

// WriteTar streams the archive to w.
//
// The administrative metadata, manifest and README.yml are written first and
// in that order. The payload root directory and everything beneath it
// follow in lexical walk order. Symbolic links are recorded as link entries
// without being followed; other non-regular files are skipped.
func (b *Builder) WriteTar(ctx context.Context, w io.Writer) error {
	tw := tar.NewWriter(w)
	aw := &tarWriter{
		tw:       tw,
		buf:      make([]byte, ioutil.DefaultBufferSize),
		progress: b.cfg.progress,
	}

	for _, rel := range dataset.HeaderFiles() {
		abs := filepath.Join(b.ds.Path(), filepath.FromSlash(rel))
		if err := aw.addFile(ctx, abs, path.Join(b.top, rel)); err != nil {
			return err
		}
	}
	if err := b.writePayload(ctx, aw); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("%w: finish tar: %w", ErrIO, err)
	}
	b.log().Debug("tar stream complete", "entries", aw.entries, "bytes", aw.bytes)
	return nil
}

// writePayload walks the payload root and appends its entries.
func (b *Builder) writePayload(ctx context.Context, aw *tarWriter) error {
	manifestRoot := path.Clean(b.ds.AdminMetadata().ManifestRoot)
	prefix := path.Join(b.top, manifestRoot)

	r, err := os.OpenRoot(b.ds.PayloadRoot())
	if err != nil {
		return fmt.Errorf("%w: open payload root %s: %w", ErrIO, b.ds.PayloadRoot(), err)
	}
	defer r.Close()

	return fs.WalkDir(r.FS(), ".", func(rel string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("%w: walk %s: %w", ErrIO, rel, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		// Header files were written already when the payload root is the
		// dataset directory itself.
		if manifestRoot == "." && (rel == dataset.ControlDir || rel == dataset.ReadmeFile) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		name := path.Join(prefix, rel)
		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("%w: stat %s: %w", ErrIO, rel, err)
			}
			return aw.addDir(info, pathutil.DirEntry(name))
		case d.Type().IsRegular():
			f, err := r.Open(filepath.FromSlash(rel))
			if err != nil {
				return fmt.Errorf("%w: open %s: %w", ErrIO, rel, err)
			}
			defer f.Close()
			return aw.addReader(ctx, f, name)
		case d.Type()&fs.ModeSymlink != 0:
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("%w: stat %s: %w", ErrIO, rel, err)
			}
			target, err := r.Readlink(filepath.FromSlash(rel))
			if err != nil {
				return fmt.Errorf("%w: readlink %s: %w", ErrIO, rel, err)
			}
			return aw.addSymlink(info, target, name)
		default:
			b.log().Debug("skipping non-regular file", "path", rel, "type", d.Type().String())
			return nil
		}
	})
}

// tarWriter appends entries to a tar stream and counts what it wrote.
type tarWriter struct {
	tw       *tar.Writer
	buf      []byte
	progress ProgressFunc

	entries int
	bytes   uint64
}

func (aw *tarWriter) addFile(ctx context.Context, abs, name string) error {
	f, err := os.Open(abs) //nolint:gosec // path is inside the dataset directory
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrIO, abs, err)
	}
	defer f.Close()
	return aw.addReader(ctx, f, name)
}

func (aw *tarWriter) addReader(ctx context.Context, f *os.File, name string) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrIO, f.Name(), err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrIO, f.Name())
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("%w: header for %s: %w", ErrIO, name, err)
	}
	hdr.Name = name
	if err := aw.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("%w: write header %s: %w", ErrIO, name, err)
	}
	n, err := ioutil.CopyWithContext(ctx, aw.tw, f, aw.buf)
	if err != nil {
		return ioError("write "+name, err)
	}
	if n != hdr.Size {
		return fmt.Errorf("%w: %s changed size while archiving", ErrIO, name)
	}
	aw.done(name, uint64(n)) //nolint:gosec // n is non-negative
	return nil
}

func (aw *tarWriter) addDir(info fs.FileInfo, name string) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("%w: header for %s: %w", ErrIO, name, err)
	}
	hdr.Name = name
	if err := aw.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("%w: write header %s: %w", ErrIO, name, err)
	}
	aw.done(name, 0)
	return nil
}

func (aw *tarWriter) addSymlink(info fs.FileInfo, target, name string) error {
	hdr, err := tar.FileInfoHeader(info, target)
	if err != nil {
		return fmt.Errorf("%w: header for %s: %w", ErrIO, name, err)
	}
	hdr.Name = name
	if err := aw.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("%w: write header %s: %w", ErrIO, name, err)
	}
	aw.done(name, 0)
	return nil
}

// within reports whether dir is root or lies beneath it, after resolving
// symbolic links. A dir that cannot be resolved is reported as outside.
func within(dir, root string) bool {
	dir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return false
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}

func (aw *tarWriter) done(name string, n uint64) {
	aw.entries++
	aw.bytes += n
	if aw.progress != nil {
		aw.progress(ProgressEvent{
			Stage:     StageArchiving,
			Path:      name,
			BytesDone: aw.bytes,
			FilesDone: aw.entries,
		})
	}
}
