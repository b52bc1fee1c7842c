package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arctool/internal/testutil"
)

// buildFixture writes the fixture dataset and archives it into its parent
// directory. It returns the dataset directory and the tar path.
func buildFixture(t *testing.T) (string, string) {
	t.Helper()
	dir := testutil.WriteDataset(t, t.TempDir())
	b, err := NewBuilder(dir)
	require.NoError(t, err)
	tarPath, err := b.PersistToTar(context.Background(), filepath.Dir(dir))
	require.NoError(t, err)
	return dir, tarPath
}

// tarNames lists the entry names of a tar stream.
func tarNames(t *testing.T, r io.Reader) []string {
	t.Helper()
	var names []string
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return names
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
}

// tarFileNames lists the entry names of the tar at path, decompressing it
// first when it is gzip.
func tarFileNames(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var r io.Reader = f
	if filepath.Ext(path) == GzipSuffix {
		zr, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	}
	return tarNames(t, r)
}

type tarEntry struct {
	name string
	body string
}

// writeRawTar writes entries as a tar file at path.
func writeRawTar(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     e.name,
			Mode:     0o644,
			Size:     int64(len(e.body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// headerEntries returns valid header entries for a dataset stored under top
// with the given manifest.
func headerEntries(top, manifestJSON string) []tarEntry {
	return []tarEntry{
		{top + "/.dtool/dtool", testutil.AdminJSON("archive")},
		{top + "/.dtool/manifest.json", manifestJSON},
		{top + "/README.yml", testutil.Readme},
	}
}
