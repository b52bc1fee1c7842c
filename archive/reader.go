package archive

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cpuguy83/tar2go"
	"github.com/klauspost/compress/gzip"

	"github.com/meigma/arctool/dataset"
	"github.com/meigma/arctool/internal/ioutil"
	"github.com/meigma/arctool/internal/pathutil"
	"github.com/meigma/arctool/internal/sizing"
	"github.com/meigma/arctool/manifest"
)

// Archive is an opened dataset archive.
//
// Open reads only the three header entries. Payload files are read on demand
// by CalculateFileHash and Verify; nothing is ever extracted to disk.
//
// For an uncompressed tar the Archive keeps the file open and lazily builds
// an offset index, so repeated lookups do not rescan the stream. Compressed
// archives are rescanned from the start for each lookup. Close releases the
// file.
type Archive struct {
	path       string
	compressed bool
	size       int64
	top        string

	admin    dataset.AdminMetadata
	manifest *manifest.Manifest
	readme   []byte

	cfg openConfig

	mu     sync.Mutex
	closed bool
	file   *os.File
	index  *tar2go.Index
}

// Open opens the archive at path and reads its header entries.
//
// A path ending in ".gz" is read as a gzip-compressed tar; anything else as a
// raw tar. A missing or unreadable file is an ErrIO error. A file that is not
// a tar, whose first three entries are not the administrative metadata,
// manifest and README.yml in that order, or whose metadata cannot be
// decoded, is an ErrFormat error.
func Open(path string, opts ...OpenOption) (*Archive, error) {
	cfg := openConfig{maxHeaderSize: DefaultMaxHeaderSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrIO, path, err)
	}
	f, err := os.Open(abs) //nolint:gosec // caller-provided archive path
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, abs, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, abs, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrIO, abs)
	}

	a := &Archive{
		path:       abs,
		compressed: strings.HasSuffix(abs, GzipSuffix),
		size:       info.Size(),
		cfg:        cfg,
		file:       f,
	}
	if err := a.readHeaders(); err != nil {
		f.Close()
		return nil, err
	}
	if a.compressed {
		// Compressed archives reopen the file for every scan.
		a.file = nil
		f.Close()
	}

	a.log().Debug("archive opened",
		"path", abs,
		"compressed", a.compressed,
		"name", a.admin.Name,
		"file_count", a.manifest.Len())
	return a, nil
}

func (a *Archive) log() *slog.Logger {
	if a.cfg.logger != nil {
		return a.cfg.logger
	}
	return slog.New(slog.DiscardHandler)
}

// readHeaders reads and validates the three header entries from the open file.
func (a *Archive) readHeaders() error {
	r, closeStream, err := a.wrap(a.file)
	if err != nil {
		return err
	}
	defer closeStream()

	tr := tar.NewReader(r)
	var raw [3][]byte
	for i, want := range dataset.HeaderFiles() {
		hdr, err := tr.Next()
		if err != nil {
			return a.streamError(fmt.Sprintf("header entry %d (%s)", i+1, want), err)
		}
		if i == 0 {
			top, rest, ok := pathutil.TopLevel(hdr.Name)
			if !ok || rest != want {
				return fmt.Errorf("%w: %s: first entry is %q, want <dataset>/%s", ErrFormat, a.path, hdr.Name, want)
			}
			a.top = top
		} else if hdr.Name != path.Join(a.top, want) {
			return fmt.Errorf("%w: %s: entry %d is %q, want %q", ErrFormat, a.path, i+1, hdr.Name, path.Join(a.top, want))
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			return fmt.Errorf("%w: %s: header entry %q is not a regular file", ErrFormat, a.path, hdr.Name)
		}
		raw[i], err = sizing.ReadAllWithLimit(tr, a.cfg.maxHeaderSize, ErrFormat)
		if err != nil {
			if errors.Is(err, ErrFormat) {
				return fmt.Errorf("%w: %s: %s: %w", ErrFormat, a.path, hdr.Name, err)
			}
			return a.streamError("read "+hdr.Name, err)
		}
	}

	admin, err := dataset.ParseAdminMetadata(raw[0])
	if err != nil {
		return fmt.Errorf("%w: %s: administrative metadata: %w", ErrFormat, a.path, err)
	}
	m, err := manifest.Parse(raw[1])
	if err != nil {
		return fmt.Errorf("%w: %s: manifest: %w", ErrFormat, a.path, err)
	}
	if a.cfg.hashFunction != "" && m.HashFunction != a.cfg.hashFunction {
		return fmt.Errorf("%w: %s: manifest uses %s, want %s", ErrFormat, a.path, m.HashFunction, a.cfg.hashFunction)
	}

	a.admin = admin
	a.manifest = m
	a.readme = raw[2]
	return nil
}

// wrap returns a tar stream over f, decompressing when the archive is gzip.
func (a *Archive) wrap(f *os.File) (io.Reader, func(), error) {
	if !a.compressed {
		return io.NewSectionReader(f, 0, a.size), func() {}, nil
	}
	zr, err := gzip.NewReader(bufio.NewReaderSize(f, ioutil.DefaultBufferSize))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s is not gzip: %w", ErrFormat, a.path, err)
	}
	return zr, func() { zr.Close() }, nil
}

// openStream returns a fresh tar reader positioned at the start of the
// archive and a function that releases it.
func (a *Archive) openStream() (*tar.Reader, func(), error) {
	a.mu.Lock()
	closed, shared := a.closed, a.file
	a.mu.Unlock()
	if closed {
		return nil, nil, fmt.Errorf("%w: %s: archive is closed", ErrIO, a.path)
	}

	if !a.compressed {
		r, release, err := a.wrap(shared)
		if err != nil {
			return nil, nil, err
		}
		return tar.NewReader(r), release, nil
	}

	f, err := os.Open(a.path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s: %w", ErrIO, a.path, err)
	}
	r, release, err := a.wrap(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return tar.NewReader(r), func() {
		release()
		f.Close()
	}, nil
}

// streamError classifies a failure reading the tar stream.
func (a *Archive) streamError(op string, err error) error {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, tar.ErrHeader),
		errors.Is(err, gzip.ErrHeader),
		errors.Is(err, gzip.ErrChecksum):
		return fmt.Errorf("%w: %s: %s: %w", ErrFormat, a.path, op, err)
	default:
		return ioError(a.path+": "+op, err)
	}
}

// entryName returns the tar entry name of a payload path.
func (a *Archive) entryName(rel string) string {
	return path.Join(a.top, a.admin.ManifestRoot, rel)
}

// Path returns the absolute archive path.
func (a *Archive) Path() string { return a.path }

// Compressed reports whether the archive is gzip-compressed.
func (a *Archive) Compressed() bool { return a.compressed }

// Name returns the dataset name from the administrative metadata.
func (a *Archive) Name() string { return a.admin.Name }

// TopLevel returns the directory name every entry is stored under.
func (a *Archive) TopLevel() string { return a.top }

// AdminMetadata returns the archived administrative metadata.
func (a *Archive) AdminMetadata() dataset.AdminMetadata { return a.admin }

// Manifest returns the archived manifest. The returned value is shared with
// the Archive; verification uses whatever it holds.
func (a *Archive) Manifest() *manifest.Manifest { return a.manifest }

// Readme returns the raw README.yml content.
func (a *Archive) Readme() []byte { return a.readme }

// DescriptiveMetadata decodes the archived README.yml.
func (a *Archive) DescriptiveMetadata() (map[string]any, error) {
	m, err := dataset.ParseReadme(a.readme)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFormat, a.path, err)
	}
	return m, nil
}

// Close releases the file backing an uncompressed archive. Payload reads on
// a closed archive fail with ErrIO for both forms; metadata accessors keep
// working. It is safe to call more than once.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	a.index = nil
	return err
}
