// Package storage keeps the bytes of file shares. Content is addressed by an
// opaque reference generated here, never by the uploaded file name.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("content not found")
	ErrInvalidRef = errors.New("invalid content reference")
)

type ContentStore interface {
	// Put stores everything read from r and returns the new reference and
	// the number of bytes written.
	Put(ctx context.Context, r io.Reader) (ref string, size int64, err error)
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	// Delete succeeds when ref is already gone.
	Delete(ctx context.Context, ref string) error
}

func newRef() string {
	return uuid.NewString()
}

func checkRef(ref string) error {
	if _, err := uuid.Parse(ref); err != nil {
		return ErrInvalidRef
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
