package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps each key as a file under baseDir. The key's slash
// segments become directories, so "conversations/abc/arc_state.json"
// lands at baseDir/conversations/abc/arc_state.json.
type FileStore struct {
	baseDir  string
	watchers watcherSet
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{
		baseDir: baseDir,
	}
}

// BaseDir returns the root directory backing this store.
func (s *FileStore) BaseDir() string {
	return s.baseDir
}

// sanitizeKey validates and cleans the key to prevent directory traversal
func (s *FileStore) sanitizeKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("invalid key: empty")
	}

	// Clean the key to resolve . and .. elements
	cleaned := filepath.Clean(filepath.FromSlash(key))

	// Reject keys that try to escape using ..
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid key: contains parent directory reference")
	}

	// Reject absolute keys
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid key: absolute paths not allowed")
	}

	// Build the full path
	fullPath := filepath.Join(s.baseDir, cleaned)

	// Verify the final path is still within baseDir
	// This handles symbolic links and other edge cases
	if !strings.HasPrefix(fullPath, s.baseDir+string(filepath.Separator)) && fullPath != s.baseDir {
		return "", fmt.Errorf("invalid key: outside base directory")
	}

	return fullPath, nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	fullPath, err := s.sanitizeKey(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	return data, nil
}

func (s *FileStore) Set(ctx context.Context, key string, data []byte) error {
	fullPath, err := s.sanitizeKey(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	// Use restrictive permissions for settings records
	mode := os.FileMode(0644)
	if strings.Contains(key, "settings") {
		mode = 0600
	}

	if err := os.WriteFile(fullPath, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}

	s.watchers.notify(key)
	return nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	fullPath, err := s.sanitizeKey(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("deleting %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("deleting %s: %w", key, err)
	}

	return nil
}

// List returns every key under prefix, in walk order. A prefix of ""
// lists the whole store.
func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	if strings.Contains(prefix, "..") {
		return nil, fmt.Errorf("invalid prefix: contains parent directory reference")
	}
	if filepath.IsAbs(prefix) {
		return nil, fmt.Errorf("invalid prefix: absolute paths not allowed")
	}

	var keys []string
	err := filepath.WalkDir(s.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.baseDir, p)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("listing keys: %w", err)
	}

	return keys, nil
}

// Watch registers fn to run after every successful Set.
func (s *FileStore) Watch(fn func(key string)) (cancel func()) {
	return s.watchers.add(fn)
}
