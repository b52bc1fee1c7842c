package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/google/uuid"

	"github.com/meigma/arctool/internal/arctype"
	"github.com/meigma/arctool/internal/atomicfile"
)

// Sentinel errors re-exported from internal/arctype.
var (
	// ErrConfiguration is returned when administrative metadata or the
	// manifest is missing or malformed.
	ErrConfiguration = arctype.ErrConfiguration

	// ErrIO is returned when a filesystem operation fails.
	ErrIO = arctype.ErrIO
)

// Layout of a dataset directory, as slash-separated paths relative to it.
const (
	ControlDir        = ".dtool"
	AdminMetadataFile = ".dtool/dtool"
	ManifestFile      = ".dtool/manifest.json"
	ReadmeFile        = "README.yml"

	// DefaultManifestRoot is the payload directory of newly created datasets.
	DefaultManifestRoot = "archive"
)

// FormatVersion is recorded in the dtool_version key of new administrative metadata.
const FormatVersion = "0.9.0"

// Kinds of dataset directory.
const (
	TypeDataset    = "dataset"
	TypeCollection = "collection"
)

// HeaderFiles returns the administrative files in the order they lead every
// archive: administrative metadata, manifest, descriptive metadata.
func HeaderFiles() []string {
	return []string{AdminMetadataFile, ManifestFile, ReadmeFile}
}

// AdminMetadata is the identity of a dataset.
type AdminMetadata struct {
	UUID            string `json:"uuid"`
	Name            string `json:"name"`
	FormatVersion   string `json:"dtool_version"`
	CreatorUsername string `json:"creator_username"`
	ManifestRoot    string `json:"manifest_root"`
	Type            string `json:"type"`
}

// NewAdminMetadata returns identity for a new dataset or collection with a
// fresh random UUID.
func NewAdminMetadata(name, kind, creator string) AdminMetadata {
	root := DefaultManifestRoot
	if kind == TypeCollection {
		root = "."
	}
	return AdminMetadata{
		UUID:            uuid.NewString(),
		Name:            name,
		FormatVersion:   FormatVersion,
		CreatorUsername: creator,
		ManifestRoot:    root,
		Type:            kind,
	}
}

// Validate checks that the metadata is complete and well formed.
func (m AdminMetadata) Validate() error {
	var errs []error
	if m.UUID == "" {
		errs = append(errs, errors.New("missing uuid"))
	} else if _, err := uuid.Parse(m.UUID); err != nil || len(m.UUID) != 36 {
		errs = append(errs, fmt.Errorf("uuid %q is not a canonical UUID", m.UUID))
	}
	if m.Name == "" {
		errs = append(errs, errors.New("missing name"))
	}
	if m.ManifestRoot == "" {
		errs = append(errs, errors.New("missing manifest_root"))
	} else if m.ManifestRoot != "." && (path.IsAbs(m.ManifestRoot) || !localSlashPath(m.ManifestRoot)) {
		errs = append(errs, fmt.Errorf("manifest_root %q escapes the dataset directory", m.ManifestRoot))
	}
	switch m.Type {
	case TypeDataset, TypeCollection:
	case "":
		errs = append(errs, errors.New("missing type"))
	default:
		errs = append(errs, fmt.Errorf("unknown type %q", m.Type))
	}
	return errors.Join(errs...)
}

// ParseAdminMetadata decodes and validates administrative metadata.
func ParseAdminMetadata(data []byte) (AdminMetadata, error) {
	var m AdminMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return AdminMetadata{}, fmt.Errorf("decode administrative metadata: %w", err)
	}
	if err := m.Validate(); err != nil {
		return AdminMetadata{}, err
	}
	return m, nil
}

// ReadAdminMetadata reads the administrative metadata file at path.
// Every failure wraps ErrConfiguration.
func ReadAdminMetadata(path string) (AdminMetadata, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller-provided dataset path
	if err != nil {
		return AdminMetadata{}, fmt.Errorf("%w: read %s: %w", ErrConfiguration, path, err)
	}
	m, err := ParseAdminMetadata(data)
	if err != nil {
		return AdminMetadata{}, fmt.Errorf("%w: %s: %w", ErrConfiguration, path, err)
	}
	return m, nil
}

// Marshal encodes the metadata as indented JSON with a trailing newline.
func (m AdminMetadata) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// writeAdminMetadata writes m to path atomically.
func writeAdminMetadata(path string, m AdminMetadata) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(path, data, 0o644)
}

// localSlashPath reports whether p is a relative slash path that stays
// within its parent once cleaned.
func localSlashPath(p string) bool {
	clean := path.Clean(p)
	return clean != ".." && !hasDotDotPrefix(clean)
}

func hasDotDotPrefix(p string) bool {
	return len(p) >= 3 && p[:3] == "../"
}
