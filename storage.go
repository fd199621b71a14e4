package loqui

import "sync"

// Storage is the key-value persistence collaborator backing the conversation
// cache. Implementations must be safe for concurrent use.
type Storage interface {
	// GetItem returns the stored value and whether the key exists.
	GetItem(key string) (string, bool, error)
	// SetItem overwrites the value for key.
	SetItem(key, value string) error
}

// MemoryStorage is a goroutine-safe in-memory Storage. It is the default for
// tests and for processes that do not need the cache to survive restarts.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (s *MemoryStorage) GetItem(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *MemoryStorage) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}
