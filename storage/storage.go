// Package storage keeps uploaded images on an afero filesystem and builds
// their public URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// PublicPrefix is where the upload filesystem is mounted on the router.
const PublicPrefix = "/uploads/"

var ErrInvalidPath = errors.New("invalid object path")

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

type FSStore struct {
	fs      afero.Fs
	baseURL string
}

// NewFSStore stores objects under the root of fs. baseURL may be empty for
// relative URLs.
func NewFSStore(fs afero.Fs, baseURL string) *FSStore {
	return &FSStore{fs: fs, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewOSStore roots the store at dir on the local disk.
func NewOSStore(dir, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return NewFSStore(afero.NewBasePathFs(afero.NewOsFs(), dir), baseURL), nil
}

func (s *FSStore) Fs() afero.Fs { return s.fs }

func clean(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
		}
	}
	return path.Clean(key), nil
}

func (s *FSStore) Put(ctx context.Context, key string, body io.Reader, _ string) error {
	key, err := clean(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(path.Dir(key), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	if err := afero.WriteReader(s.fs, key, body); err != nil {
		_ = s.fs.Remove(key)
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	key, err := clean(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *FSStore) PublicURL(key string) string {
	return s.baseURL + PublicPrefix + strings.TrimPrefix(key, "/")
}

var _ ObjectStore = (*FSStore)(nil)
