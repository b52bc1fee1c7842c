package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"

	"github.com/cpuguy83/tar2go"

	"github.com/meigma/arctool/internal/hashing"
	"github.com/meigma/arctool/internal/ioutil"
	"github.com/meigma/arctool/internal/pathutil"
)

// CalculateFileHash hashes the archived payload file at relPath, a
// slash-separated path relative to the payload root, using the manifest's
// hash function.
//
// Uncompressed archives are served from an offset index built on first use;
// compressed archives are scanned from the start. A path with no regular
// file entry in the archive is an ErrNotFound error.
func (a *Archive) CalculateFileHash(ctx context.Context, relPath string) (string, error) {
	if !fs.ValidPath(relPath) || relPath == "." {
		return "", fmt.Errorf("%w: invalid payload path %q", ErrNotFound, relPath)
	}
	name := a.entryName(relPath)

	var (
		r       io.Reader
		release func()
		err     error
	)
	if a.compressed {
		r, release, err = a.scanTo(ctx, name)
	} else {
		r, release, err = a.indexed(name)
	}
	if err != nil {
		return "", err
	}
	defer release()

	sum, _, err := hashing.Sum(ctx, a.manifest.HashFunction, r, nil)
	if err != nil {
		if errors.Is(err, ErrFormat) {
			return "", err
		}
		return "", a.streamError("hash "+name, err)
	}
	return sum, nil
}

// indexed opens name through the tar offset index.
func (a *Archive) indexed(name string) (io.Reader, func(), error) {
	a.mu.Lock()
	if a.file == nil {
		a.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s: archive is closed", ErrIO, a.path)
	}
	if a.index == nil {
		a.index = tar2go.NewIndex(io.NewSectionReader(a.file, 0, a.size))
	}
	idx := a.index
	a.mu.Unlock()

	f, err := idx.FS().Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, a.path)
		}
		return nil, nil, a.streamError("index "+name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, a.streamError("stat "+name, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s in %s is not a regular file", ErrNotFound, name, a.path)
	}
	return f, func() { f.Close() }, nil
}

// scanTo reads the archive from the start until it reaches the regular file
// entry name.
func (a *Archive) scanTo(ctx context.Context, name string) (io.Reader, func(), error) {
	tr, release, err := a.openStream()
	if err != nil {
		return nil, nil, err
	}
	for {
		if err := ctx.Err(); err != nil {
			release()
			return nil, nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			release()
			return nil, nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, a.path)
		}
		if err != nil {
			release()
			return nil, nil, a.streamError("scan for "+name, err)
		}
		if hdr.Name == name && hdr.FileInfo().Mode().IsRegular() {
			return tr, release, nil
		}
	}
}

// VerifyFile reports whether the archived file at relPath hashes to the
// value recorded in the manifest. It returns false when the path is absent
// from the manifest or the archive, or cannot be read.
func (a *Archive) VerifyFile(ctx context.Context, relPath string) bool {
	entry, ok := a.manifest.Lookup(relPath)
	if !ok {
		a.log().Debug("path not in manifest", "path", relPath)
		return false
	}
	sum, err := a.CalculateFileHash(ctx, relPath)
	if err != nil {
		a.log().Debug("hash failed", "path", relPath, "error", err)
		return false
	}
	if sum != entry.Hash {
		a.log().Debug("hash mismatch", "path", relPath, "want", entry.Hash, "got", sum)
		return false
	}
	return true
}

// VerifyAll reports whether every file in the manifest verifies. Every
// entry is checked even after a failure.
func (a *Archive) VerifyAll(ctx context.Context) bool {
	report, err := a.Verify(ctx)
	if err != nil {
		a.log().Warn("verification failed", "path", a.path, "error", err)
		return false
	}
	return report.OK()
}

// Report is the outcome of verifying every manifest entry.
type Report struct {
	// Verified lists paths whose archived content matches the manifest.
	Verified []string `json:"verified"`

	// Mismatched lists paths whose archived content hashes differently.
	Mismatched []string `json:"mismatched"`

	// Missing lists manifest paths with no regular file entry in the archive.
	Missing []string `json:"missing"`
}

// OK reports whether every manifest entry verified.
func (r *Report) OK() bool {
	return len(r.Mismatched) == 0 && len(r.Missing) == 0
}

// Verify hashes every payload file in a single sequential pass over the
// archive and compares each against the manifest.
//
// Mismatches are reported, not returned as errors. An error means the
// archive could not be read to the end.
func (a *Archive) Verify(ctx context.Context) (*Report, error) {
	tr, release, err := a.openStream()
	if err != nil {
		return nil, err
	}
	defer release()

	prefix := pathutil.DirPrefix(a.entryName(""))
	total := a.manifest.Len()
	seen := make(map[string]bool, total)
	report := &Report{}
	buf := make([]byte, ioutil.DefaultBufferSize)
	var bytesDone uint64

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, a.streamError("verify", err)
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			continue
		}
		rel, ok := pathutil.Rel(hdr.Name, prefix)
		if !ok || seen[rel] {
			continue
		}
		entry, ok := a.manifest.Lookup(rel)
		if !ok {
			a.log().Debug("archived file not in manifest", "path", rel)
			continue
		}
		seen[rel] = true

		sum, n, err := hashing.Sum(ctx, a.manifest.HashFunction, tr, buf)
		if err != nil {
			if errors.Is(err, ErrFormat) {
				return nil, err
			}
			return nil, a.streamError("hash "+hdr.Name, err)
		}
		if sum == entry.Hash {
			report.Verified = append(report.Verified, rel)
		} else {
			a.log().Debug("hash mismatch", "path", rel, "want", entry.Hash, "got", sum)
			report.Mismatched = append(report.Mismatched, rel)
		}

		bytesDone += uint64(n) //nolint:gosec // n is non-negative
		if a.cfg.progress != nil {
			a.cfg.progress(ProgressEvent{
				Stage:      StageVerifying,
				Path:       rel,
				BytesDone:  bytesDone,
				FilesDone:  len(seen),
				FilesTotal: total,
			})
		}
	}

	for _, e := range a.manifest.Files {
		if !seen[e.Path] {
			report.Missing = append(report.Missing, e.Path)
		}
	}
	slices.Sort(report.Verified)
	slices.Sort(report.Mismatched)

	a.log().Info("archive verified",
		"path", a.path,
		"verified", len(report.Verified),
		"mismatched", len(report.Mismatched),
		"missing", len(report.Missing))
	return report, nil
}
