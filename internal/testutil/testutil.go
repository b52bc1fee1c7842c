// Package testutil builds dataset fixtures for tests.
package testutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/meigma/arctool/manifest"
)

// Fixture identity written by WriteDataset.
const (
	DatasetName = "brassica_rnaseq_reads"
	DatasetUUID = "5e3d1c29-7b1c-4a24-9f2e-3b2d8c6f1a90"
	Creator     = "olssont"
)

// Payload files written by WriteDataset, relative to the payload root, with
// their SHA-1 digests.
var (
	Payload = map[string]string{
		"file1.txt":      "Hello world\n",
		"dir1/file2.txt": "Second file\n",
	}
	PayloadSHA1 = map[string]string{
		"file1.txt":      "33ab5639bfd8e7b95eb1d8d0b87781d4ffea4d5d",
		"dir1/file2.txt": "449355c6b6f5fe4f213164a93868516d36eb0153",
	}
)

// Readme is the descriptive metadata written by WriteDataset.
const Readme = `---
project_name: crop_genomics
dataset_name: brassica_rnaseq_reads
confidential: false
personally_identifiable_information: false
owners:
  - name: Some One
    email: ones@example.com
archive_date: 2016-01-12
`

// AdminJSON returns administrative metadata for the fixture dataset.
func AdminJSON(manifestRoot string) string {
	return `{
  "uuid": "` + DatasetUUID + `",
  "name": "` + DatasetName + `",
  "dtool_version": "0.9.0",
  "creator_username": "` + Creator + `",
  "manifest_root": "` + manifestRoot + `",
  "type": "dataset"
}
`
}

// WriteFiles writes files, keyed by slash path, beneath dir.
func WriteFiles(tb testing.TB, dir string, files map[string]string) {
	tb.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			tb.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			tb.Fatalf("write %s: %v", path, err)
		}
	}
}

// WriteDataset creates a complete fixture dataset named DatasetName inside
// parent and returns its path. The payload lives under "archive" and the
// manifest is generated from it.
func WriteDataset(tb testing.TB, parent string) string {
	tb.Helper()
	dir := filepath.Join(parent, DatasetName)
	WriteFiles(tb, dir, map[string]string{
		".dtool/dtool": AdminJSON("archive"),
		"README.yml":   Readme,
	})
	payload := filepath.Join(dir, "archive")
	WriteFiles(tb, payload, Payload)
	WriteManifest(tb, dir, payload)
	return dir
}

// WriteManifest generates a manifest for payload and stores it in the
// dataset at dir.
func WriteManifest(tb testing.TB, dir, payload string) *manifest.Manifest {
	tb.Helper()
	m, err := manifest.Generate(context.Background(), payload)
	if err != nil {
		tb.Fatalf("generate manifest: %v", err)
	}
	if err := m.WriteFile(filepath.Join(dir, ".dtool", "manifest.json")); err != nil {
		tb.Fatalf("write manifest: %v", err)
	}
	return m
}

// ErrWriteFailed is returned by FailingWriter once its budget is spent.
var ErrWriteFailed = errors.New("testutil: write failed")

// FailingWriter accepts N bytes and then fails every write.
type FailingWriter struct {
	N int
}

func (w *FailingWriter) Write(p []byte) (int, error) {
	if w.N <= 0 {
		return 0, ErrWriteFailed
	}
	if len(p) > w.N {
		n := w.N
		w.N = 0
		return n, ErrWriteFailed
	}
	w.N -= len(p)
	return len(p), nil
}
