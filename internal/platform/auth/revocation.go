package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationStore records sessions ended by logout before their expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// MemoryRevocationStore keeps revoked session ids in memory. Entries are
// dropped once the session would have expired anyway.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemoryRevocationStore creates a store whose background goroutine
// removes expired entries every interval.
func NewMemoryRevocationStore(interval time.Duration) *MemoryRevocationStore {
	s := &MemoryRevocationStore{
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	if interval > 0 {
		go s.cleanupLoop(interval)
	}
	return s
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, sessionID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = expiresAt
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[sessionID]
	return ok, nil
}

// Count returns the number of tracked revocations.
func (s *MemoryRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *MemoryRevocationStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryRevocationStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.cleanup(now)
		}
	}
}

func (s *MemoryRevocationStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, id)
		}
	}
}
