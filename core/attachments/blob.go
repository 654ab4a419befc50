package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// BlobStore keeps attachment bytes under an opaque key.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

var ErrBadKey = errors.New("invalid blob key")

// FSBlobStore writes blobs below a root directory and hands out URLs under a
// public base path served by the HTTP layer.
type FSBlobStore struct {
	root    string
	baseURL string
}

func NewFSBlobStore(root, baseURL string) (*FSBlobStore, error) {
	if strings.TrimSpace(root) == "" {
		root = "data/attachments"
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create attachments dir: %w", err)
	}
	return &FSBlobStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FSBlobStore) Root() string {
	return s.root
}

func (s *FSBlobStore) Put(ctx context.Context, key string, r io.Reader, _ string) (string, error) {
	full, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("store blob: %w", err)
	}
	return s.url(key), nil
}

// Delete is idempotent; a missing blob is not an error.
func (s *FSBlobStore) Delete(_ context.Context, key string) error {
	full, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *FSBlobStore) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "\\") {
		return "", ErrBadKey
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func (s *FSBlobStore) url(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}
