package billphoto

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps blobs under a directory on disk.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) Save(_ context.Context, name string, data []byte, _ string) (string, error) {
	clean := filepath.Clean("/" + name)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	path := filepath.Join(s.dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return "file://" + path, nil
}
