package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type LocalStorage struct {
	basePath string
}

var _ ContentStore = (*LocalStorage)(nil)

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absPath, 0o750); err != nil {
		return nil, err
	}
	return &LocalStorage{basePath: absPath}, nil
}

func (ls *LocalStorage) BasePath() string {
	return ls.basePath
}

// getPathFromRef shards by the first four hex digits: ab/cd/abcd....
func (ls *LocalStorage) getPathFromRef(ref string) string {
	flat := strings.ReplaceAll(ref, "-", "")
	return filepath.Join(ls.basePath, flat[0:2], flat[2:4], ref)
}

func (ls *LocalStorage) Put(ctx context.Context, data io.Reader) (string, int64, error) {
	ref := newRef()
	filePath := ls.getPathFromRef(ref)
	dir := filepath.Dir(filePath)

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", 0, err
	}

	// Readers must never see a half-written file, so write aside and rename.
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", 0, err
	}
	tmpName := tmp.Name()

	size, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: data})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return "", 0, err
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return "", 0, err
	}

	return ref, size, nil
}

func (ls *LocalStorage) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}

	file, err := os.Open(ls.getPathFromRef(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("content %s: %w", ref, ErrNotFound)
		}
		return nil, err
	}

	return file, nil
}

func (ls *LocalStorage) Delete(ctx context.Context, ref string) error {
	if err := checkRef(ref); err != nil {
		return err
	}

	err := os.Remove(ls.getPathFromRef(ref))
	if os.IsNotExist(err) {
		return nil
	}

	return err
}

// ctxReader stops a copy once the request that feeds it is gone.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
