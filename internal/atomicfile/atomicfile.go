// Package atomicfile writes files through a temporary sibling that is renamed
// into place only after its content is flushed, so readers never observe a
// partially written target.
package atomicfile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// tempPattern names temporary siblings; the leading dot keeps them out of
// casual directory listings.
const tempPattern = ".arctool-*"

// File is a pending write to a target path.
//
// Exactly one of Commit or Discard must be called.
type File struct {
	f      *os.File
	target string
	perm   fs.FileMode
	done   bool
}

// Create opens a temporary file next to target. Nothing is visible at target
// until Commit succeeds.
func Create(target string, perm fs.FileMode) (*File, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), tempPattern)
	if err != nil {
		return nil, err
	}
	return &File{f: tmp, target: target, perm: perm}, nil
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	return f.f.Write(p)
}

// Name returns the temporary file path.
func (f *File) Name() string {
	return f.f.Name()
}

// Commit syncs and closes the temporary file, then renames it over target.
// On failure the temporary file is removed.
func (f *File) Commit() error {
	if f.done {
		return errors.New("atomicfile: already finished")
	}
	f.done = true
	tmpPath := f.f.Name()
	if err := f.f.Chmod(f.perm); err != nil {
		f.f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.f.Sync(); err != nil {
		f.f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, f.target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Discard closes and removes the temporary file. It is a no-op after Commit.
func (f *File) Discard() error {
	if f.done {
		return nil
	}
	f.done = true
	_ = f.f.Close() //nolint:errcheck // the file is being removed
	return os.Remove(f.f.Name())
}

// WriteFile writes data to target atomically.
func WriteFile(target string, data []byte, perm fs.FileMode) error {
	f, err := Create(target, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Discard() //nolint:errcheck // best-effort cleanup
		return err
	}
	return f.Commit()
}
