package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/meigma/arctool/internal/ioutil"
)

// Media types of dataset archives.
const (
	MediaTypeTar     = "application/vnd.meigma.arctool.dataset.v1.tar"
	MediaTypeTarGzip = "application/vnd.meigma.arctool.dataset.v1.tar+gzip"
)

// Descriptor annotation keys.
const (
	AnnotationDatasetUUID = "dev.arctool.dataset.uuid"
	AnnotationDatasetName = "dev.arctool.dataset.name"
)

// Describe returns a content descriptor for the archive at path.
//
// The archive's header entries are validated first. The digest is the sha256
// of the whole file as stored, compressed or not.
func Describe(ctx context.Context, path string, opts ...OpenOption) (ocispec.Descriptor, error) {
	a, err := Open(path, opts...)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	defer a.Close()

	f, err := os.Open(a.Path())
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: open %s: %w", ErrIO, a.Path(), err)
	}
	defer f.Close()

	digester := digest.SHA256.Digester()
	n, err := ioutil.CopyWithContext(ctx, digester.Hash(), f, nil)
	if err != nil {
		return ocispec.Descriptor{}, ioError("digest "+a.Path(), err)
	}

	mediaType := MediaTypeTar
	if a.Compressed() {
		mediaType = MediaTypeTarGzip
	}
	admin := a.AdminMetadata()
	return ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    digester.Digest(),
		Size:      n,
		Annotations: map[string]string{
			ocispec.AnnotationTitle: filepath.Base(a.Path()),
			AnnotationDatasetUUID:   admin.UUID,
			AnnotationDatasetName:   admin.Name,
		},
	}, nil
}
