package backend

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const fileSuffix = ".json"

// FileStore persists each key as one file under a base directory. Writes
// go through a temporary file followed by an atomic rename so a crash
// mid-write never leaves a torn value. Keys are path-escaped to form safe
// file names.
type FileStore struct {
	basePath string
}

// NewFileStore creates a file-backed store rooted at basePath. The
// directory is created on first write.
func NewFileStore(basePath string) *FileStore {
	return &FileStore{basePath: basePath}
}

func (f *FileStore) pathFor(key string) string {
	return filepath.Join(f.basePath, url.PathEscape(key)+fileSuffix)
}

// Get implements Store.Get. An absent file means an absent key.
func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(f.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read value for key %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set implements Store.Set with a temp-file write and atomic rename.
func (f *FileStore) Set(_ context.Context, key, value string) error {
	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	path := f.pathFor(key)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(value), 0600); err != nil {
		return fmt.Errorf("failed to write temporary file for key %q: %w", key, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename value file for key %q: %w", key, err)
	}
	return nil
}

// Remove implements Store.Remove.
func (f *FileStore) Remove(_ context.Context, key string) error {
	if err := os.Remove(f.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove value for key %q: %w", key, err)
	}
	return nil
}

// ListKeys implements Store.ListKeys. Files that do not look like store
// entries are skipped.
func (f *FileStore) ListKeys(_ context.Context) ([]string, error) {
	dirEntries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	keys := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		escaped := strings.TrimSuffix(entry.Name(), fileSuffix)
		key, err := url.PathUnescape(escaped)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
