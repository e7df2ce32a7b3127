package idempotency

import (
	"context"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// MemoryStore is the process-local store used when redis is not configured.
// Expired keys are pruned lazily on access.
type MemoryStore struct {
	mu   sync.Mutex
	now  func() time.Time
	data map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, data: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(key)
	if !ok {
		return "", goredis.Nil
	}
	return entry.value, nil
}

func (s *MemoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	entry := memoryEntry{value: toString(value)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.data[key] = entry
	return true, nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *MemoryStore) IdempotencyKey(scope, id string) string {
	parts := []string{"oc", "idempotency"}
	for _, p := range []string{scope, id} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ":")
}

func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	entry, ok := s.data[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.data, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return "1"
	}
}
