package archive

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arctool/dataset"
	"github.com/meigma/arctool/internal/testutil"
	"github.com/meigma/arctool/manifest"
)

// archiveForms returns the fixture archive as a raw tar, as a compressed
// tar, and as a tar that went through compression and back.
func archiveForms(t *testing.T) map[string]string {
	t.Helper()
	ctx := context.Background()

	_, raw := buildFixture(t)

	_, tarPath := buildFixture(t)
	gz, err := Compress(ctx, tarPath)
	require.NoError(t, err)

	_, tarPath = buildFixture(t)
	gz2, err := Compress(ctx, tarPath)
	require.NoError(t, err)
	roundTrip, err := Decompress(ctx, gz2)
	require.NoError(t, err)

	return map[string]string{"raw": raw, "compressed": gz, "round trip": roundTrip}
}

func TestOpenVerifyAll(t *testing.T) {
	t.Parallel()

	for form, path := range archiveForms(t) {
		t.Run(form, func(t *testing.T) {
			t.Parallel()

			a, err := Open(path)
			require.NoError(t, err)
			defer a.Close()

			assert.Equal(t, filepath.Ext(path) == ".gz", a.Compressed())
			assert.Equal(t, path, a.Path())
			assert.Equal(t, testutil.DatasetName, a.Name())
			assert.Equal(t, testutil.DatasetName, a.TopLevel())
			assert.Equal(t, testutil.DatasetUUID, a.AdminMetadata().UUID)
			assert.Equal(t, 2, a.Manifest().Len())

			for rel := range testutil.Payload {
				assert.True(t, a.VerifyFile(context.Background(), rel), rel)
			}
			assert.True(t, a.VerifyAll(context.Background()))

			report, err := a.Verify(context.Background())
			require.NoError(t, err)
			assert.True(t, report.OK())
			assert.Equal(t, []string{"dir1/file2.txt", "file1.txt"}, report.Verified)
		})
	}
}

func TestOpenCompressedMatchesRaw(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteDataset(t, t.TempDir())
	b, err := NewBuilder(dir)
	require.NoError(t, err)

	rawDir, gzDir := t.TempDir(), t.TempDir()
	raw, err := b.PersistToTar(context.Background(), rawDir)
	require.NoError(t, err)
	tarPath, err := b.PersistToTar(context.Background(), gzDir)
	require.NoError(t, err)
	gz, err := Compress(context.Background(), tarPath)
	require.NoError(t, err)

	ra, err := Open(raw)
	require.NoError(t, err)
	defer ra.Close()
	ga, err := Open(gz)
	require.NoError(t, err)
	defer ga.Close()

	assert.Equal(t, ra.AdminMetadata(), ga.AdminMetadata())
	assert.Equal(t, ra.Manifest(), ga.Manifest())
	assert.Equal(t, ra.Readme(), ga.Readme())
	assert.Equal(t, ra.Summarise(), ga.Summarise())
}

func TestCalculateFileHash(t *testing.T) {
	t.Parallel()

	for form, path := range archiveForms(t) {
		t.Run(form, func(t *testing.T) {
			t.Parallel()

			a, err := Open(path)
			require.NoError(t, err)
			defer a.Close()

			for rel, want := range testutil.PayloadSHA1 {
				got, err := a.CalculateFileHash(context.Background(), rel)
				require.NoError(t, err)
				assert.Equal(t, want, got, rel)
			}

			// Repeated lookups are served again, including out of order.
			got, err := a.CalculateFileHash(context.Background(), "dir1/file2.txt")
			require.NoError(t, err)
			assert.Equal(t, testutil.PayloadSHA1["dir1/file2.txt"], got)

			for _, rel := range []string{"missing.txt", "dir1", "../escape", ""} {
				_, err := a.CalculateFileHash(context.Background(), rel)
				require.ErrorIs(t, err, ErrNotFound, rel)
			}
		})
	}
}

func TestCalculateFileHashConcurrent(t *testing.T) {
	t.Parallel()

	_, tarPath := buildFixture(t)
	a, err := Open(tarPath)
	require.NoError(t, err)
	defer a.Close()

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			got, err := a.CalculateFileHash(context.Background(), "file1.txt")
			assert.NoError(t, err)
			assert.Equal(t, testutil.PayloadSHA1["file1.txt"], got)
		})
	}
	wg.Wait()
}

func TestVerifyFileDetectsMismatch(t *testing.T) {
	t.Parallel()

	for form, path := range archiveForms(t) {
		t.Run(form, func(t *testing.T) {
			t.Parallel()

			a, err := Open(path)
			require.NoError(t, err)
			defer a.Close()

			m := a.Manifest()
			for i := range m.Files {
				if m.Files[i].Path == "file1.txt" {
					m.Files[i].Hash = "0000000000000000000000000000000000000000"
				}
			}

			assert.False(t, a.VerifyFile(context.Background(), "file1.txt"))
			assert.True(t, a.VerifyFile(context.Background(), "dir1/file2.txt"))
			assert.False(t, a.VerifyAll(context.Background()))

			report, err := a.Verify(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"file1.txt"}, report.Mismatched)
			assert.Equal(t, []string{"dir1/file2.txt"}, report.Verified)
			assert.Empty(t, report.Missing)
		})
	}
}

func TestVerifyFileNotInManifest(t *testing.T) {
	t.Parallel()

	_, tarPath := buildFixture(t)
	a, err := Open(tarPath)
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.VerifyFile(context.Background(), "nope.txt"))
}

func TestVerifyReportsMissing(t *testing.T) {
	t.Parallel()

	top := testutil.DatasetName
	manifestJSON := `{"file_list": [
  {"path": "file1.txt", "size": 12, "hash": "33ab5639bfd8e7b95eb1d8d0b87781d4ffea4d5d", "mtime": 0},
  {"path": "gone.txt", "size": 1, "hash": "aa", "mtime": 0}
], "hash_function": "sha1"}`
	entries := append(headerEntries(top, manifestJSON),
		tarEntry{top + "/archive/file1.txt", "Hello world\n"},
		tarEntry{top + "/archive/extra.txt", "not in manifest"},
	)
	path := filepath.Join(t.TempDir(), "partial.tar")
	writeRawTar(t, path, entries)

	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()

	report, err := a.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []string{"file1.txt"}, report.Verified)
	assert.Equal(t, []string{"gone.txt"}, report.Missing)
	assert.False(t, a.VerifyAll(context.Background()))
	assert.False(t, a.VerifyFile(context.Background(), "gone.txt"))
}

func TestVerifyProgress(t *testing.T) {
	t.Parallel()

	_, tarPath := buildFixture(t)
	var events []ProgressEvent
	a, err := Open(tarPath, OpenWithProgress(func(e ProgressEvent) {
		events = append(events, e)
	}))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Verify(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, StageVerifying, events[1].Stage)
	assert.Equal(t, 2, events[1].FilesDone)
	assert.Equal(t, 2, events[1].FilesTotal)
	assert.Equal(t, uint64(24), events[1].BytesDone)
}

func TestSummarise(t *testing.T) {
	t.Parallel()

	_, tarPath := buildFixture(t)
	a, err := Open(tarPath)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, Summary{
		Name:            testutil.DatasetName,
		UUID:            testutil.DatasetUUID,
		CreatorUsername: testutil.Creator,
		Type:            dataset.TypeDataset,
		ManifestRoot:    "archive",
		HashFunction:    manifest.HashSHA1,
		FileCount:       2,
		TotalSize:       24,
	}, a.Summarise())

	readme, err := a.DescriptiveMetadata()
	require.NoError(t, err)
	assert.Equal(t, "crop_genomics", readme["project_name"])
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	top := testutil.DatasetName
	validManifest := `{"file_list": [], "hash_function": "sha1"}`

	tests := []struct {
		name    string
		file    string
		entries []tarEntry
		raw     string
		opts    []OpenOption
		wantErr error
	}{
		{
			name:    "not a tar",
			file:    "junk.tar",
			raw:     "this is not a tar archive",
			wantErr: ErrFormat,
		},
		{
			name:    "empty file",
			file:    "empty.tar",
			raw:     "",
			wantErr: ErrFormat,
		},
		{
			name:    "raw tar with gz suffix",
			file:    "fake.tar.gz",
			entries: headerEntries(top, validManifest),
			wantErr: ErrFormat,
		},
		{
			name: "manifest first",
			file: "order.tar",
			entries: []tarEntry{
				{top + "/.dtool/manifest.json", validManifest},
				{top + "/.dtool/dtool", testutil.AdminJSON("archive")},
				{top + "/README.yml", testutil.Readme},
			},
			wantErr: ErrFormat,
		},
		{
			name: "readme before manifest",
			file: "order2.tar",
			entries: []tarEntry{
				{top + "/.dtool/dtool", testutil.AdminJSON("archive")},
				{top + "/README.yml", testutil.Readme},
				{top + "/.dtool/manifest.json", validManifest},
			},
			wantErr: ErrFormat,
		},
		{
			name: "mixed top level",
			file: "top.tar",
			entries: []tarEntry{
				{top + "/.dtool/dtool", testutil.AdminJSON("archive")},
				{"other/.dtool/manifest.json", validManifest},
				{top + "/README.yml", testutil.Readme},
			},
			wantErr: ErrFormat,
		},
		{
			name:    "truncated headers",
			file:    "short.tar",
			entries: headerEntries(top, validManifest)[:2],
			wantErr: ErrFormat,
		},
		{
			name:    "bad manifest json",
			file:    "manifest.tar",
			entries: headerEntries(top, "{"),
			wantErr: ErrFormat,
		},
		{
			name:    "unknown hash function",
			file:    "hash.tar",
			entries: headerEntries(top, `{"file_list": [], "hash_function": "md5"}`),
			wantErr: ErrFormat,
		},
		{
			name:    "pinned hash function",
			file:    "pinned.tar",
			entries: headerEntries(top, validManifest),
			opts:    []OpenOption{OpenWithHashFunction(manifest.HashSHA256)},
			wantErr: ErrFormat,
		},
		{
			name:    "header too large",
			file:    "large.tar",
			entries: headerEntries(top, validManifest),
			opts:    []OpenOption{OpenWithMaxHeaderSize(16)},
			wantErr: ErrFormat,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), tt.file)
			if tt.entries != nil {
				writeRawTar(t, path, tt.entries)
			} else {
				require.NoError(t, os.WriteFile(path, []byte(tt.raw), 0o644))
			}
			_, err := Open(path, tt.opts...)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := Open(filepath.Join(t.TempDir(), "missing.tar"))
		require.ErrorIs(t, err, ErrIO)
		require.ErrorIs(t, err, fs.ErrNotExist)
	})
}

func TestOpenPinnedHashFunctionMatches(t *testing.T) {
	t.Parallel()

	_, tarPath := buildFixture(t)
	a, err := Open(tarPath, OpenWithHashFunction(manifest.HashSHA1))
	require.NoError(t, err)
	require.NoError(t, a.Close())
}

func TestOpenSHA256Archive(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteDataset(t, t.TempDir())
	testutil.WriteFiles(t, filepath.Join(dir, "archive"), map[string]string{"hello.txt": "hello world"})
	ds, err := dataset.Open(dir)
	require.NoError(t, err)
	_, err = ds.UpdateManifest(context.Background(), manifest.GenerateWithHashFunction(manifest.HashSHA256))
	require.NoError(t, err)

	b, err := NewBuilder(dir)
	require.NoError(t, err)
	tarPath, err := b.PersistToTar(context.Background(), t.TempDir())
	require.NoError(t, err)

	a, err := Open(tarPath)
	require.NoError(t, err)
	defer a.Close()

	got, err := a.CalculateFileHash(context.Background(), "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)
	assert.True(t, a.VerifyAll(context.Background()))
}

func TestClosedArchive(t *testing.T) {
	t.Parallel()

	for name, path := range archiveForms(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			a, err := Open(path)
			require.NoError(t, err)
			require.NoError(t, a.Close())
			require.NoError(t, a.Close())

			_, err = a.CalculateFileHash(context.Background(), "file1.txt")
			require.ErrorIs(t, err, ErrIO)
			_, err = a.Verify(context.Background())
			require.ErrorIs(t, err, ErrIO)
			assert.False(t, a.VerifyFile(context.Background(), "file1.txt"))
			assert.False(t, a.VerifyAll(context.Background()))

			// Metadata loaded at open stays available.
			assert.Equal(t, 2, a.Manifest().Len())
		})
	}
}
