package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	kv     map[string]memEntry
	hashes map[string]map[string]string
}

type memEntry struct {
	data []byte
	exp  time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		kv:     make(map[string]memEntry),
		hashes: make(map[string]map[string]string),
	}
}

func (s *MemoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.kv[key] = memEntry{data: data, exp: exp}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.RLock()
	e, ok := s.kv[key]
	s.mu.RUnlock()
	if !ok {
		return ErrCacheMiss
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		s.mu.Lock()
		delete(s.kv, key)
		s.mu.Unlock()
		return ErrCacheMiss
	}
	return decode(e.data, dest)
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.kv, k)
		delete(s.hashes, k)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) HSet(_ context.Context, key, field string, value interface{}) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	h[field] = string(data)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) HSetNX(_ context.Context, key, field string, value interface{}) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	if _, exists := h[field]; !exists {
		h[field] = string(data)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) HGet(_ context.Context, key, field string, dest interface{}) error {
	s.mu.RLock()
	h, ok := s.hashes[key]
	var raw string
	if ok {
		raw, ok = h[field]
	}
	s.mu.RUnlock()
	if !ok {
		return ErrCacheMiss
	}
	return decode([]byte(raw), dest)
}

func (s *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.hashes[key]))
	for f, v := range s.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
