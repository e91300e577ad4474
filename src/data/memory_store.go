package data

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory. It backs tests and local runs
// without redis or MySQL.
type MemoryStore struct {
	mu       sync.RWMutex
	active   map[string][]byte
	archived map[string][][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active:   make(map[string][]byte),
		archived: make(map[string][][]byte),
	}
}

func (s *MemoryStore) ListActive(_ context.Context) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.active))
	for k, v := range s.active {
		out[k] = cloneBytes(v)
	}
	return out, nil
}

func (s *MemoryStore) GetActive(_ context.Context, channelID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.active[channelID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneBytes(v), nil
}

func (s *MemoryStore) SetActive(_ context.Context, channelID string, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[channelID] = cloneBytes(record)
	return nil
}

func (s *MemoryStore) RemoveActive(_ context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, channelID)
	return nil
}

func (s *MemoryStore) AppendArchived(_ context.Context, key string, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived[key] = append(s.archived[key], cloneBytes(record))
	return nil
}

func (s *MemoryStore) ListArchived(_ context.Context, key string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket := s.archived[key]
	out := make([][]byte, len(bucket))
	for i, v := range bucket {
		out[i] = cloneBytes(v)
	}
	return out, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
