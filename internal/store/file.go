package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps each blob in its own file under a base directory.
// Writes go through a temp file and rename so readers never see a torn blob.
type FileStore struct {
	dir string
}

// NewFileStore creates the base directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	// Keys are caller-controlled identifiers like "task" or "q_table_web".
	// Flatten anything path-like so a key cannot escape the base dir.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, safe+".json")
}

// Save writes the blob for key.
func (s *FileStore) Save(key string, blob []byte) error {
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Load returns the blob for key, with found=false for a missing key.
func (s *FileStore) Load(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", s.path(key), err)
	}
	return data, true, nil
}

// Delete removes the blob for key; missing keys are ignored.
func (s *FileStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", s.path(key), err)
	}
	return nil
}
