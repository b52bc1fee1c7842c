package manifest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ignoreMTime compares manifests on identity fields only.
var ignoreMTime = cmpopts.IgnoreFields(Entry{}, "MTime")

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"file1.txt":      "Hello world\n",
		"dir1/file2.txt": "Second file\n",
	})

	m, err := Generate(context.Background(), dir)
	require.NoError(t, err)

	want := &Manifest{
		HashFunction: HashSHA1,
		Files: []Entry{
			{Path: "dir1/file2.txt", Size: 12, Hash: "449355c6b6f5fe4f213164a93868516d36eb0153"},
			{Path: "file1.txt", Size: 12, Hash: "33ab5639bfd8e7b95eb1d8d0b87781d4ffea4d5d"},
		},
	}
	if diff := cmp.Diff(want, m, ignoreMTime); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}

	info, err := os.Stat(filepath.Join(dir, "file1.txt"))
	require.NoError(t, err)
	e, ok := m.Lookup("file1.txt")
	require.True(t, ok)
	assert.InDelta(t, float64(info.ModTime().UnixNano())/1e9, e.MTime, 1e-3)
}

func TestGenerateSortsByFullPath(t *testing.T) {
	t.Parallel()

	// A directory walk visits "a/b" before "a.txt"; the manifest is ordered
	// by full path bytes instead.
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.txt": "1",
		"a/b":   "2",
		"B":     "3",
	})

	m, err := Generate(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "a.txt", "a/b"}, m.Paths())
}

func TestGenerateDeterministicAcrossWorkers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := make(map[string]string)
	for i := range 40 {
		files[fmt.Sprintf("d%d/f%02d.dat", i%4, i)] = fmt.Sprintf("content %d", i)
	}
	writeFiles(t, dir, files)

	serial, err := Generate(context.Background(), dir, GenerateWithWorkers(-1))
	require.NoError(t, err)
	parallel, err := Generate(context.Background(), dir, GenerateWithWorkers(8))
	require.NoError(t, err)

	assert.True(t, serial.Equal(parallel))
	assert.Empty(t, cmp.Diff(serial, parallel, ignoreMTime))
	assert.Equal(t, 40, parallel.Len())
}

func TestGenerateSkip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		".dtool/dtool":      "{}",
		"README.yml":        "---",
		"data/file.txt":     "x",
		"nested/README.yml": "kept",
	})

	m, err := Generate(context.Background(), dir, GenerateWithSkip(".dtool", "README.yml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"data/file.txt", "nested/README.yml"}, m.Paths())
}

func TestGenerateSkipsSymlinks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"real.txt": "real"})
	require.NoError(t, os.Symlink("real.txt", filepath.Join(dir, "link.txt")))

	m, err := Generate(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"real.txt"}, m.Paths())
}

func TestGenerateHashFunction(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"hello.txt": "hello world"})

	m, err := Generate(context.Background(), dir, GenerateWithHashFunction(HashSHA256))
	require.NoError(t, err)
	assert.Equal(t, HashSHA256, m.HashFunction)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", m.Files[0].Hash)

	_, err = Generate(context.Background(), dir, GenerateWithHashFunction("crc32"))
	require.ErrorIs(t, err, ErrFormat)
}

func TestGenerateEmpty(t *testing.T) {
	t.Parallel()

	m, err := Generate(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, m.Len())
	assert.NotNil(t, m.Files)
}

func TestGenerateMissingRoot(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope")
	_, err := Generate(context.Background(), missing)
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), missing)
}

func TestGenerateFileRemovedDuringHashing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "first", "b.txt": "second"})

	// With one worker, files are hashed in walk order and the progress
	// callback for a.txt runs before b.txt is opened.
	removeNext := func(ev ProgressEvent) {
		if ev.Stage == StageHashing && ev.Path == "a.txt" {
			_ = os.Remove(filepath.Join(dir, "b.txt"))
		}
	}
	_, err := Generate(context.Background(), dir,
		GenerateWithWorkers(1),
		GenerateWithProgress(removeNext))
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.ErrorContains(t, err, "b.txt")
}

func TestGenerateUnreadableFile(t *testing.T) {
	t.Parallel()
	if os.Geteuid() == 0 {
		t.Skip("file permissions do not apply to root")
	}

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"ok.txt": "fine", "locked.txt": "secret"})
	locked := filepath.Join(dir, "locked.txt")
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	_, err := Generate(context.Background(), dir)
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, fs.ErrPermission)
	assert.ErrorContains(t, err, "locked.txt")
}

func TestGenerateCanceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "a", "b.txt": "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, dir)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerateProgress(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "aa", "b/c.txt": "ccc"})

	var mu sync.Mutex
	var events []ProgressEvent
	_, err := Generate(context.Background(), dir, GenerateWithProgress(func(e ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}))
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, StageEnumerating, events[0].Stage)
	var maxFiles int
	var maxBytes uint64
	for _, e := range events[1:] {
		assert.Equal(t, StageHashing, e.Stage)
		assert.Equal(t, 2, e.FilesTotal)
		maxFiles = max(maxFiles, e.FilesDone)
		maxBytes = max(maxBytes, e.BytesDone)
	}
	assert.Equal(t, 2, maxFiles)
	assert.Equal(t, uint64(5), maxBytes)
}
