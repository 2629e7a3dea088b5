package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process TTL map used directly in development and as
// the degraded-mode fallback behind RedisStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time

	stopCleanup chan struct{}
	once        sync.Once
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries:     make(map[string]time.Time),
		stopCleanup: make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *MemoryStore) Store(_ context.Context, userID, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key(userID, tokenID)] = time.Now().Add(ttl)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, userID, tokenID string) (bool, error) {
	s.mu.RLock()
	exp, ok := s.entries[key(userID, tokenID)]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		// lazily drop the expired entry
		s.mu.Lock()
		delete(s.entries, key(userID, tokenID))
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Revoke(_ context.Context, userID, tokenID string) (bool, error) {
	k := key(userID, tokenID)
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.entries[k]
	if !ok {
		return false, nil
	}
	delete(s.entries, k)
	if time.Now().After(exp) {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stopCleanup) })
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, k)
		}
	}
}
