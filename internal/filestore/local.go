package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type localConfig struct {
	Dir       string `json:"dir"`
	PublicURL string `json:"public_url"`
}

type localStore struct {
	dir       string
	publicURL string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	return &localStore{dir: config.Dir, publicURL: config.PublicURL}, nil
}

func (s *localStore) Save(ctx context.Context, key string, r ReadSeekCloser, size int64, contentType string) error {
	_ = ctx
	_ = size
	_ = contentType
	if !validKey(key) {
		return fmt.Errorf("invalid file key: %s", key)
	}
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		out.Close()
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (s *localStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	_ = ctx
	if !validKey(key) {
		return nil, fmt.Errorf("invalid file key: %s", key)
	}
	return os.Open(filepath.Join(s.dir, filepath.FromSlash(key)))
}

func (s *localStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	if !validKey(key) {
		return fmt.Errorf("invalid file key: %s", key)
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// SignedURL on the local store is a plain public URL join; there is no signer
// and the ttl is ignored.
func (s *localStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	_ = ctx
	_ = ttl
	if !validKey(key) {
		return "", fmt.Errorf("invalid file key: %s", key)
	}
	if s.publicURL == "" {
		return "", fmt.Errorf("local store public_url is not configured")
	}
	return strings.TrimSuffix(s.publicURL, "/") + "/" + key, nil
}
