package archive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/pgzip"

	"github.com/meigma/arctool/internal/atomicfile"
	"github.com/meigma/arctool/internal/ioutil"
)

// GzipSuffix is appended to a tar path by Compress.
const GzipSuffix = ".gz"

// Compress gzips the tar at tarPath into tarPath+".gz" and removes tarPath.
//
// The compressed stream is written to a temporary file in the same
// directory, synced, and renamed into place. tarPath is removed only after
// the rename succeeds, so a failure at any point leaves the original tar
// intact and no partial .gz behind. The returned path is absolute.
func Compress(ctx context.Context, tarPath string, opts ...CompressOption) (string, error) {
	cfg := compressConfig{level: DefaultCompression}
	for _, opt := range opts {
		opt(&cfg)
	}

	src, err := filepath.Abs(tarPath)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %w", ErrIO, tarPath, err)
	}
	target := src + GzipSuffix

	var in int64
	var out uint64
	err = transform(src, target, func(w io.Writer, r io.Reader) error {
		cw := &ioutil.CountingWriter{W: w}
		zw, err := newGzipWriter(cw, cfg)
		if err != nil {
			return fmt.Errorf("%w: gzip writer: %w", ErrIO, err)
		}
		if in, err = ioutil.CopyWithContext(ctx, zw, r, nil); err != nil {
			_ = zw.Close() //nolint:errcheck // the output is discarded
			return ioError("compress "+src, err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("%w: finish gzip stream: %w", ErrIO, err)
		}
		out = cw.N
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("%w: remove %s: %w", ErrIO, src, err)
	}
	cfg.log().Info("archive compressed",
		"path", target,
		"level", cfg.level,
		"concurrency", cfg.concurrency,
		"bytes_in", in,
		"bytes_out", out)
	return target, nil
}

// Decompress reverses Compress: it expands gzPath into the same path without
// its ".gz" suffix and removes gzPath once the tar is in place.
//
// A path without the ".gz" suffix or content that is not gzip is an
// ErrFormat error.
func Decompress(ctx context.Context, gzPath string, opts ...CompressOption) (string, error) {
	cfg := compressConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	src, err := filepath.Abs(gzPath)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %w", ErrIO, gzPath, err)
	}
	target, ok := strings.CutSuffix(src, GzipSuffix)
	if !ok || filepath.Base(src) == GzipSuffix {
		return "", fmt.Errorf("%w: %s does not end in %s", ErrFormat, src, GzipSuffix)
	}

	err = transform(src, target, func(w io.Writer, r io.Reader) error {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("%w: %s is not gzip: %w", ErrFormat, src, err)
		}
		defer zr.Close()
		if _, err := ioutil.CopyWithContext(ctx, w, zr, nil); err != nil {
			if isGzipFormatError(err) {
				return fmt.Errorf("%w: %s: %w", ErrFormat, src, err)
			}
			return ioError("decompress "+src, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("%w: remove %s: %w", ErrIO, src, err)
	}
	cfg.log().Info("archive decompressed", "path", target)
	return target, nil
}

// transform streams src through fn into an atomically written target.
func transform(src, target string, fn func(w io.Writer, r io.Reader) error) error {
	in, err := os.Open(src) //nolint:gosec // caller-provided archive path
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrIO, src, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrIO, src, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrIO, src)
	}

	out, err := atomicfile.Create(target, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIO, target, err)
	}
	bw := bufio.NewWriterSize(out, ioutil.DefaultBufferSize)
	br := bufio.NewReaderSize(in, ioutil.DefaultBufferSize)
	if err := fn(bw, br); err != nil {
		_ = out.Discard() //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = out.Discard() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("%w: write %s: %w", ErrIO, target, err)
	}
	if err := out.Commit(); err != nil {
		return fmt.Errorf("%w: commit %s: %w", ErrIO, target, err)
	}
	return nil
}

func newGzipWriter(w io.Writer, cfg compressConfig) (io.WriteCloser, error) {
	if cfg.concurrency > 1 {
		zw, err := pgzip.NewWriterLevel(w, cfg.level)
		if err != nil {
			return nil, err
		}
		if err := zw.SetConcurrency(DefaultBlockSize, cfg.concurrency); err != nil {
			return nil, err
		}
		return zw, nil
	}
	return gzip.NewWriterLevel(w, cfg.level)
}

func isGzipFormatError(err error) bool {
	return errors.Is(err, gzip.ErrChecksum) ||
		errors.Is(err, gzip.ErrHeader) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// ioError wraps err as ErrIO unless it is a context error.
func ioError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
