package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps objects in a map. Used for tests and single-process demos.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore(publicBaseURL string) *MemoryStore {
	if publicBaseURL == "" {
		publicBaseURL = DefaultPublicBaseURL
	}
	return &MemoryStore{objects: make(map[string]Object), baseURL: publicBaseURL}
}

// Put stores a copy of data.
func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objects[cleaned] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	s.mu.Unlock()
	return publicURL(s.baseURL, cleaned), nil
}

// Get returns a stored object.
func (s *MemoryStore) Get(ctx context.Context, key string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	cleaned, err := cleanKey(key)
	if err != nil {
		return Object{}, err
	}
	s.mu.RLock()
	object, ok := s.objects[cleaned]
	s.mu.RUnlock()
	if !ok {
		return Object{}, ErrObjectNotFound
	}
	return object, nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
