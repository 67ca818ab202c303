package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MemoryStore keeps objects in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, objectPath string, data []byte, _ string) error {
	if err := validPath(objectPath); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectPath] = append([]byte(nil), data...)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, objectPath string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[objectPath]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// FSStore keeps objects as files under a root directory.
type FSStore struct {
	root string
}

// NewFSStore creates root if needed.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) file(objectPath string) string {
	return filepath.Join(s.root, filepath.FromSlash(objectPath))
}

// Put implements Store. The object is written to a temp file and renamed so
// readers never see a partial upload.
func (s *FSStore) Put(_ context.Context, objectPath string, data []byte, _ string) error {
	if err := validPath(objectPath); err != nil {
		return err
	}
	target := s.file(objectPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	return os.Rename(tmp.Name(), target)
}

// Get implements Store.
func (s *FSStore) Get(_ context.Context, objectPath string) ([]byte, error) {
	if err := validPath(objectPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.file(objectPath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// Close implements Store.
func (s *FSStore) Close() error { return nil }
