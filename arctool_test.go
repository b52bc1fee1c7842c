package arctool

import (
	"context"
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

func TestLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	parent := t.TempDir()
	ds, err := dataset.Create(ctx, parent, dataset.DescriptiveMetadata{
		ProjectName: "crop_genomics",
		DatasetName: "brassica_rnaseq_reads",
		Owners:      []dataset.Owner{{Name: "Some One", Email: "ones@example.com"}},
		ArchiveDate: "2016-01-12",
	}, dataset.CreateWithCreator("olssont"))
	require.NoError(t, err)

	testutil.WriteFiles(t, ds.PayloadRoot(), testutil.Payload)
	require.NoError(t, GenerateManifest(ctx, ds.Path()))

	m, err := ds.Manifest()
	require.NoError(t, err)
	assert.Equal(t, []string{"README.txt", "dir1/file2.txt", "file1.txt"}, m.Paths())

	out := t.TempDir()
	tarPath, err := BuildArchive(ctx, ds.Path(), out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "brassica_rnaseq_reads.tar"), tarPath)

	gzPath, err := CompressArchive(ctx, tarPath)
	require.NoError(t, err)
	assert.NoFileExists(t, tarPath)

	a, err := OpenArchive(gzPath)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, VerifyAll(ctx, a))
	summary := Summarise(a)
	assert.Equal(t, 3, summary.FileCount)
	assert.Equal(t, ds.AdminMetadata().UUID, summary.UUID)
	assert.Equal(t, "olssont", summary.CreatorUsername)

	sum, err := a.CalculateFileHash(ctx, "file1.txt")
	require.NoError(t, err)
	assert.Equal(t, testutil.PayloadSHA1["file1.txt"], sum)
}

func TestGenerateManifestHashFunction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := testutil.WriteDataset(t, t.TempDir())
	require.NoError(t, GenerateManifest(ctx, dir, WithHashFunction(manifest.HashSHA512)))

	tarPath, err := BuildArchive(ctx, dir, t.TempDir())
	require.NoError(t, err)

	_, err = OpenArchive(tarPath, WithHashFunction(manifest.HashSHA1))
	require.ErrorIs(t, err, ErrFormat)

	a, err := OpenArchive(tarPath, WithHashFunction(manifest.HashSHA512))
	require.NoError(t, err)
	defer a.Close()
	assert.True(t, VerifyAll(ctx, a))
}

func TestFacadeErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	err := GenerateManifest(ctx, t.TempDir())
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = BuildArchive(ctx, t.TempDir(), t.TempDir())
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = CompressArchive(ctx, filepath.Join(t.TempDir(), "missing.tar"))
	require.ErrorIs(t, err, ErrIO)

	junk := filepath.Join(t.TempDir(), "junk.tar")
	require.NoError(t, os.WriteFile(junk, []byte("junk"), 0o644))
	_, err = OpenArchive(junk)
	require.ErrorIs(t, err, ErrFormat)

	dir := testutil.WriteDataset(t, t.TempDir())
	tarPath, err := BuildArchive(ctx, dir, t.TempDir())
	require.NoError(t, err)
	a, err := OpenArchive(tarPath)
	require.NoError(t, err)
	defer a.Close()
	_, err = a.CalculateFileHash(ctx, "nope.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := testutil.WriteDataset(t, t.TempDir())
	var mu sync.Mutex
	stages := make(map[ProgressStage]bool)
	record := WithProgress(func(e ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		stages[e.Stage] = true
	})

	require.NoError(t, GenerateManifest(ctx, dir, record))
	tarPath, err := BuildArchive(ctx, dir, t.TempDir(), record)
	require.NoError(t, err)
	a, err := OpenArchive(tarPath, record)
	require.NoError(t, err)
	defer a.Close()
	assert.True(t, VerifyAll(ctx, a))

	for _, s := range []ProgressStage{StageEnumerating, StageHashing, StageArchiving, StageVerifying} {
		assert.True(t, stages[s], s.String())
	}
}
