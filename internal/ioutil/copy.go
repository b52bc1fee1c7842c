// Package ioutil provides streaming helpers shared by the archive packages.
package ioutil

import (
	"context"
	"errors"
	"io"
)

// DefaultBufferSize is the chunk size used when no buffer is supplied.
const DefaultBufferSize = 32 * 1024

var errInvalidWrite = errors.New("invalid write result")

// CopyWithContext copies src to dst in len(buf)-sized chunks, checking ctx
// between chunks. A nil or empty buf allocates DefaultBufferSize bytes.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	if len(buf) == 0 {
		buf = make([]byte, DefaultBufferSize)
	}
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			if nw < 0 || nr < nw {
				nw = 0
				if werr == nil {
					werr = errInvalidWrite
				}
			}
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return written, nil
			}
			return written, rerr
		}
	}
}
