package core

import "sync"

// SyncMap is an implementation of a map that is safe for concurrent usage.
type SyncMap[K comparable, V any] struct {
	m  map[K]V
	mu sync.RWMutex
}

func NewSyncMap[K comparable, V any]() *SyncMap[K, V] {
	return &SyncMap[K, V]{
		m: make(map[K]V),
	}
}

func (s *SyncMap[K, V]) Load(key K) (value V, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok = s.m[key]
	return
}

// Compute applies f to the current value of key under the write lock.
// The returned value is stored when keep is true, otherwise the key is deleted.
func (s *SyncMap[K, V]) Compute(key K, f func(value V, ok bool) (newValue V, keep bool)) V {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.m[key]
	newValue, keep := f(value, ok)
	if keep {
		s.m[key] = newValue
	} else {
		delete(s.m, key)
	}
	return newValue
}

func (s *SyncMap[K, V]) Store(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *SyncMap[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

func (s *SyncMap[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Range calls f for each entry while holding the read lock.
// f must not call back into the map.
func (s *SyncMap[K, V]) Range(f func(key K, value V) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.m {
		if !f(k, v) {
			break
		}
	}
}
