package manifest

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/meigma/arctool/internal/arctype"
	"github.com/meigma/arctool/internal/atomicfile"
	"github.com/meigma/arctool/internal/hashing"
)

// Sentinel errors re-exported from internal/arctype.
var (
	// ErrIO is returned when a payload file cannot be read.
	ErrIO = arctype.ErrIO

	// ErrFormat is returned for an unrecognized hash function or undecodable manifest.
	ErrFormat = arctype.ErrFormat
)

// Supported hash function names.
const (
	HashSHA1   = hashing.SHA1
	HashSHA256 = hashing.SHA256
	HashSHA512 = hashing.SHA512

	// DefaultHashFunction is used when a manifest does not declare one.
	DefaultHashFunction = hashing.Default
)

// Entry describes one payload file.
type Entry struct {
	// Path is slash-separated and relative to the payload root.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// Hash is the hex digest of the raw file bytes.
	Hash string `json:"hash"`

	// MTime is the modification time in Unix seconds.
	MTime float64 `json:"mtime"`
}

// Manifest is the recorded mapping from payload path to size, hash and
// timestamp.
//
// Files must stay sorted by Path; Lookup relies on it. Constructors and
// Parse guarantee the order.
type Manifest struct {
	Files        []Entry `json:"file_list"`
	HashFunction string  `json:"hash_function"`

	// FormatVersion is the dataset format version that produced the
	// manifest. It is informational and not compared by Equal.
	FormatVersion string `json:"dtool_version,omitempty"`
}

// New returns a manifest over entries, sorted by path.
// An empty hashFunction selects DefaultHashFunction.
func New(hashFunction string, entries []Entry) *Manifest {
	if hashFunction == "" {
		hashFunction = DefaultHashFunction
	}
	files := slices.Clone(entries)
	if files == nil {
		files = []Entry{}
	}
	sortEntries(files)
	return &Manifest{Files: files, HashFunction: hashFunction}
}

// Parse decodes a JSON manifest.
//
// The file_list key is required. A missing hash_function falls back to
// DefaultHashFunction; an unknown one is an ErrFormat error.
func Parse(data []byte) (*Manifest, error) {
	var raw struct {
		Files         *[]Entry `json:"file_list"`
		HashFunction  string   `json:"hash_function"`
		FormatVersion string   `json:"dtool_version"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if raw.Files == nil {
		return nil, errors.New("decode manifest: missing file_list")
	}
	if raw.HashFunction != "" && !hashing.Supported(raw.HashFunction) {
		return nil, fmt.Errorf("%w: unsupported hash function %q", ErrFormat, raw.HashFunction)
	}
	for _, e := range *raw.Files {
		if e.Path == "" || strings.HasPrefix(e.Path, "/") {
			return nil, fmt.Errorf("decode manifest: invalid entry path %q", e.Path)
		}
	}
	m := New(raw.HashFunction, *raw.Files)
	m.FormatVersion = raw.FormatVersion
	return m, nil
}

// Read parses the manifest file at path.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller-provided manifest path
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Marshal encodes the manifest as indented JSON with a trailing newline.
func (m *Manifest) Marshal() ([]byte, error) {
	out := *m
	if out.Files == nil {
		out.Files = []Entry{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteFile writes the manifest to path atomically.
func (m *Manifest) WriteFile(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(path, data, 0o644)
}

// Lookup returns the entry recorded for path.
func (m *Manifest) Lookup(path string) (Entry, bool) {
	i, ok := slices.BinarySearchFunc(m.Files, path, func(e Entry, p string) int {
		return strings.Compare(e.Path, p)
	})
	if !ok {
		return Entry{}, false
	}
	return m.Files[i], true
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.Files)
}

// TotalSize returns the sum of all entry sizes.
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, e := range m.Files {
		total += e.Size
	}
	return total
}

// Paths returns the entry paths in manifest order.
func (m *Manifest) Paths() []string {
	paths := make([]string, len(m.Files))
	for i, e := range m.Files {
		paths[i] = e.Path
	}
	return paths
}

// Equal reports whether two manifests record the same hash function and the
// same paths, sizes and hashes. Modification times are ignored.
func (m *Manifest) Equal(other *Manifest) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.HashFunction != other.HashFunction || len(m.Files) != len(other.Files) {
		return false
	}
	for i := range m.Files {
		a, b := m.Files[i], other.Files[i]
		if a.Path != b.Path || a.Size != b.Size || a.Hash != b.Hash {
			return false
		}
	}
	return true
}

func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.Path, b.Path)
	})
}
