package session

import (
	"context"
	"sync"
	"time"

	"github.com/tajious/medsync/internal/models"
)

type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	values    map[string]string
	expiresAt time.Time
}

// NewMemoryStore keeps sessions in process. A zero ttl never expires them.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]*memoryEntry),
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || entry.expired(time.Now()) {
		return nil, ErrNoSession
	}
	return decode(entry.values)
}

func (s *MemoryStore) Set(ctx context.Context, id string, sess *models.Session) error {
	values, err := encode(sess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, k)
		}
	}

	if len(values) == 0 {
		delete(s.entries, id)
		return nil
	}

	entry := &memoryEntry{values: values}
	if s.ttl > 0 {
		entry.expiresAt = now.Add(s.ttl)
	}
	s.entries[id] = entry
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
