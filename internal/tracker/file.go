package tracker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// fileBackend stores the mapping as a single JSON document on local disk.
// Writes go through a temp file + rename so a crash never leaves a
// half-written document.
type fileBackend struct {
	path string
}

func openFile(cfg Config) (Backend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileBackend{path: path}, nil
}

func (b *fileBackend) Load(ctx context.Context) ([]byte, bool, error) {
	_ = ctx
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (b *fileBackend) Save(ctx context.Context, data []byte) error {
	_ = ctx
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, b.path)
}

func (b *fileBackend) Close() error { return nil }
