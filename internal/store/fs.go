package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSStore keeps artifacts in a directory tree: one directory per session,
// one file per artifact.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem store rooted at rootDir, creating the
// directory if needed.
func NewFSStore(rootDir string) (*FSStore, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store root: %w", err)
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}

	return &FSStore{root: root}, nil
}

// Root returns the absolute store root directory
func (s *FSStore) Root() string {
	return s.root
}

// resolve maps {session}/{filename} to an absolute path and rejects any
// input that would escape the store root or cross into another session.
func (s *FSStore) resolve(session, filename string) (string, error) {
	if !validComponent(session) || !validComponent(filename) {
		return "", ErrInvalidPath
	}

	path := filepath.Join(s.root, session, filename)
	if !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}

	return path, nil
}

// validComponent accepts a single path element: no separators, no traversal
func validComponent(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// Write persists data under {session}/{filename}
func (s *FSStore) Write(_ context.Context, session, filename string, data []byte) error {
	path, err := s.resolve(session, filename)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	return nil
}

// Read returns the artifact bytes at {session}/{filename}
func (s *FSStore) Read(_ context.Context, session, filename string) ([]byte, error) {
	path, err := s.resolve(session, filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	return data, nil
}

// Exists reports whether an artifact is present at {session}/{filename}
func (s *FSStore) Exists(_ context.Context, session, filename string) (bool, error) {
	path, err := s.resolve(session, filename)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat artifact: %w", err)
	}

	return true, nil
}
