// Package hashing maps manifest hash function names to implementations and
// streams content through them.
package hashing

import (
	"context"
	"crypto/sha1" //nolint:gosec // sha1 is the manifest format's reference checksum, not a security primitive
	_ "crypto/sha256" // registers sha256 for go-digest
	_ "crypto/sha512" // registers sha512 for go-digest
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/arctool/internal/arctype"
	"github.com/meigma/arctool/internal/ioutil"
)

// Supported hash function names, as recorded in a manifest's hash_function key.
const (
	SHA1   = "sha1"
	SHA256 = "sha256"
	SHA512 = "sha512"

	// Default is the hash function used when none is configured.
	Default = SHA1
)

// Names returns the supported hash function names.
func Names() []string {
	return []string{SHA1, SHA256, SHA512}
}

// Supported reports whether name is a known hash function.
func Supported(name string) bool {
	switch name {
	case SHA1, SHA256, SHA512:
		return true
	default:
		return false
	}
}

// New returns a fresh hash for the named function.
// Unknown names return an error wrapping arctype.ErrFormat.
func New(name string) (hash.Hash, error) {
	switch name {
	case SHA1:
		return sha1.New(), nil //nolint:gosec // see import
	case SHA256:
		return digest.SHA256.Hash(), nil
	case SHA512:
		return digest.SHA512.Hash(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported hash function %q", arctype.ErrFormat, name)
	}
}

// Sum streams r through the named hash function and returns the hex digest
// and the number of bytes read. Content is consumed in len(buf)-sized
// chunks; it is never buffered whole.
func Sum(ctx context.Context, name string, r io.Reader, buf []byte) (string, int64, error) {
	h, err := New(name)
	if err != nil {
		return "", 0, err
	}
	n, err := ioutil.CopyWithContext(ctx, h, r, buf)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
