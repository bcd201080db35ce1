package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"alert-service/internal/models"
)

// LocalStore keeps fallback uploads on disk under root.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Path maps a key to its file, refusing keys that escape the root.
func (s *LocalStore) Path(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) || strings.HasPrefix(key, "/") {
		return "", models.InvalidInputf("invalid upload key %q", key)
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("resolve upload root: %w", err)
	}
	p := filepath.Join(root, filepath.FromSlash(key))
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", models.InvalidInputf("invalid upload key %q", key)
	}
	return p, nil
}

// Save writes data under key and returns the absolute path. The write goes
// to a temp file in the same directory and is renamed into place, so
// concurrent writers to one key each leave a complete file (last rename wins).
func (s *LocalStore) Save(key string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", models.InvalidInputf("no data uploaded")
	}
	p, err := s.Path(key)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write upload %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close upload %s: %w", key, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("chmod upload %s: %w", key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename upload %s: %w", key, err)
	}
	return p, nil
}

// Resolve returns the path of an existing upload.
func (s *LocalStore) Resolve(key string) (string, error) {
	p, err := s.Path(key)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", fmt.Errorf("upload %s: %w", key, models.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("stat upload %s: %w", key, err)
	}
	return p, nil
}

// Read returns the stored bytes for key.
func (s *LocalStore) Read(key string) ([]byte, error) {
	p, err := s.Resolve(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}
