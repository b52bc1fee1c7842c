package manifest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/arctool/internal/arctype"
	"github.com/meigma/arctool/internal/hashing"
	"github.com/meigma/arctool/internal/ioutil"
)

// bufPool holds chunk buffers for streaming file content through the hash.
var bufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, ioutil.DefaultBufferSize)
		return &buf
	},
}

// Generate builds a manifest covering every regular file under root.
//
// Paths are recorded relative to root with forward slashes. Symbolic links
// and other non-regular files are skipped. Files are hashed on a bounded
// worker pool; the result is sorted by path before it is returned, so the
// worker count never affects the output.
//
// Any file that cannot be read aborts generation with an ErrIO error naming
// the file.
func Generate(ctx context.Context, root string, opts ...GenerateOption) (*Manifest, error) {
	cfg := generateConfig{hashFunction: DefaultHashFunction}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !hashing.Supported(cfg.hashFunction) {
		return nil, fmt.Errorf("%w: unsupported hash function %q", ErrFormat, cfg.hashFunction)
	}

	g := &generator{cfg: cfg, logger: cfg.logger}
	g.log().Info("generating manifest", "root", root, "hash_function", cfg.hashFunction)

	r, err := os.OpenRoot(root)
	if err != nil {
		return nil, fmt.Errorf("%w: open payload root %s: %w", ErrIO, root, err)
	}
	defer r.Close()

	g.reportProgress(arctype.StageEnumerating, "", 0, 0, 0)
	paths, err := g.enumerate(r)
	if err != nil {
		return nil, err
	}

	entries, err := g.hashAll(ctx, r, paths)
	if err != nil {
		return nil, err
	}

	m := New(cfg.hashFunction, entries)
	g.log().Debug("manifest generated", "file_count", m.Len(), "total_size", m.TotalSize())
	return m, nil
}

// generator holds state for one Generate call.
type generator struct {
	cfg    generateConfig
	logger *slog.Logger

	filesDone atomic.Int64
	bytesDone atomic.Uint64
}

// log returns the logger, falling back to a discard logger if nil.
func (g *generator) log() *slog.Logger {
	if g.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return g.logger
}

// reportProgress sends a progress event if a callback is configured.
func (g *generator) reportProgress(stage arctype.ProgressStage, path string, bytesDone uint64, filesDone, filesTotal int) {
	if g.cfg.progress == nil {
		return
	}
	g.cfg.progress(ProgressEvent{
		Stage:      stage,
		Path:       path,
		BytesDone:  bytesDone,
		FilesDone:  filesDone,
		FilesTotal: filesTotal,
	})
}

// enumerate walks the payload root and returns the slash-separated paths of
// all regular files.
func (g *generator) enumerate(r *os.Root) ([]string, error) {
	paths := make([]string, 0, 256)
	err := fs.WalkDir(r.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("%w: walk %s: %w", ErrIO, path, walkErr)
		}
		if path == "." {
			return nil
		}
		if slices.Contains(g.cfg.skip, path) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			g.log().Debug("skipped symlink", "path", path)
			return nil
		}
		if !d.Type().IsRegular() {
			g.log().Debug("skipped non-regular file", "path", path)
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// hashAll hashes every path, honoring the configured worker bound.
func (g *generator) hashAll(ctx context.Context, r *os.Root, paths []string) ([]Entry, error) {
	entries := make([]Entry, len(paths))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workerCount(len(paths)))

	for i, path := range paths {
		eg.Go(func() error {
			entry, err := g.hashFile(ectx, r, path)
			if err != nil {
				return err
			}
			entries[i] = entry
			done := g.filesDone.Add(1)
			bytes := g.bytesDone.Add(uint64(entry.Size)) //nolint:gosec // size is non-negative
			g.reportProgress(arctype.StageHashing, path, bytes, int(done), len(paths))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// hashFile streams one file through the hash function.
func (g *generator) hashFile(ctx context.Context, r *os.Root, path string) (Entry, error) {
	f, err := r.Open(filepath.FromSlash(path))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}

	bufp := bufPool.Get().(*[]byte) //nolint:errcheck // pool only holds *[]byte
	defer bufPool.Put(bufp)

	sum, n, err := hashing.Sum(ctx, g.cfg.hashFunction, f, *bufp)
	if err != nil {
		if ctx.Err() != nil {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}
	if n != info.Size() {
		return Entry{}, fmt.Errorf("%w: %s changed during manifest generation: expected %d bytes, read %d", ErrIO, path, info.Size(), n)
	}

	return Entry{
		Path:  path,
		Size:  info.Size(),
		Hash:  sum,
		MTime: float64(info.ModTime().UnixNano()) / 1e9,
	}, nil
}

// workerCount determines how many files are hashed at once.
func (g *generator) workerCount(files int) int {
	workers := g.cfg.workers
	if workers < 0 {
		return 1
	}
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > files {
		workers = files
	}
	if workers < 1 {
		return 1
	}
	return workers
}
