// Package sizing provides bounded reads for header files pulled from a tar stream.
package sizing

import (
	"fmt"
	"io"
	"math"
)

// ReadAllWithLimit reads up to maxSize bytes from r.
// Returns an error wrapping overflowErr if more than maxSize bytes are available.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize > uint64(math.MaxInt-1) {
		return nil, overflowErr
	}
	limit := int64(maxSize) + 1 //nolint:gosec // checked above
	lr := &io.LimitedReader{R: r, N: limit}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > maxSize { //nolint:gosec // len is always non-negative
		return nil, fmt.Errorf("%w: exceeds %d bytes", overflowErr, maxSize)
	}
	return data, nil
}
