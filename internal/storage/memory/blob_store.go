package memory

import (
	"context"
	"fmt"
	"sync"
)

// BlobStore keeps snapshot payloads in memory for development and tests.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewBlobStore constructs a BlobStore.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		objects: make(map[string][]byte),
	}
}

// PutObject stores data under path and returns a mem:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[path] = cp
	return "mem://" + path, nil
}

// Object returns a stored payload; the second result reports presence.
func (s *BlobStore) Object(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[path]
	return data, ok
}
