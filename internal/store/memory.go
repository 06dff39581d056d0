package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-memory Store implementation used by tests and by
// ephemeral tooling that should not touch the on-device database.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates a new empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

// GetJSON unmarshals the value stored under key into dest
func (s *MemoryStore) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, nil
	}

	return true, nil
}

// SetJSON marshals value and stores it under key
func (s *MemoryStore) SetJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.values[key] = string(raw)
	s.mu.Unlock()

	return nil
}

// Remove deletes the value stored under key
func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()

	return nil
}

// SetRaw stores a raw string under key, bypassing JSON marshaling. Tests
// use it to simulate corrupt stored values.
func (s *MemoryStore) SetRaw(key, raw string) {
	s.mu.Lock()
	s.values[key] = raw
	s.mu.Unlock()
}
