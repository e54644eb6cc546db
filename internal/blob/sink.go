// Package blob stores report exports on the local filesystem or in an
// S3-compatible bucket.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Sink accepts finished export files.
type Sink interface {
	// Put stores r under key and returns where it ended up.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// Config selects and configures a sink driver.
type Config struct {
	Driver string // fs or s3
	Dir    string
	S3     S3Config
}

// Open returns the sink for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Sink, error) {
	switch cfg.Driver {
	case "", "fs":
		return NewFS(cfg.Dir)
	case "s3":
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("blob: unknown driver %q", cfg.Driver)
	}
}

// FS writes exports below a root directory.
type FS struct {
	root string
}

// NewFS returns a filesystem sink rooted at root, creating it if needed.
func NewFS(root string) (*FS, error) {
	if root == "" {
		root = "exports"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FS{root: root}, nil
}

func (s *FS) Put(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.root, k)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return path, nil
}

// sanitizeKey keeps keys relative and inside the root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key contains '..'")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key")
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}
