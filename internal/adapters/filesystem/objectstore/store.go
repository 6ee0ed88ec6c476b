// Package objectstore stores uploaded images on the local filesystem and
// serves them under a public base URL.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/campus-tech-club/roster-api/internal/ports/out/objectstore"
)

// Store writes objects below Root. URLs are BaseURL + "/" + key.
type Store struct {
	root    string
	baseURL string
}

func NewStore(root, baseURL string) (*Store, error) {
	if root == "" {
		return nil, errors.New("filesystem object store: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create media root %q: %w", abs, err)
	}
	return &Store{root: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory objects are written to.
func (s *Store) Root() string { return s.root }

func (s *Store) Upload(ctx context.Context, key string, contentType string, r io.Reader) (string, error) {
	_ = contentType
	key, err := objectstore.CleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	// Write to a temp file in the same directory, then rename into place.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, readerWithContext(ctx, r)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write object %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return s.baseURL + "/" + key, nil
}

func (s *Store) Remove(ctx context.Context, url string) error {
	_ = ctx
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return objectstore.ErrNotFound
	}
	key, err := objectstore.CleanKey(strings.TrimPrefix(url, prefix))
	if err != nil {
		return objectstore.ErrNotFound
	}
	err = os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return objectstore.ErrNotFound
	}
	return err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	if ctx == nil {
		return r
	}
	return ctxReader{ctx: ctx, r: r}
}
