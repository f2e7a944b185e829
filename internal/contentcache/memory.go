package contentcache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"coursemind/internal/models"
)

// MemoryStore is the fast ephemeral backend for small structured text.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates an in-process store. Expired entries are swept
// every ten minutes; the Manager enforces validity independently.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(StructuredTTL, 10*time.Minute),
	}
}

func memoryKey(kind models.SourceKind, key string) string {
	return string(kind) + ":" + key
}

// Get returns the entry for (kind, key).
func (s *MemoryStore) Get(kind models.SourceKind, key string) (Entry, bool, error) {
	value, found := s.cache.Get(memoryKey(kind, key))
	if !found {
		return Entry{}, false, nil
	}
	entry, ok := value.(Entry)
	if !ok {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Set stores the entry with the kind's TTL as backend expiration.
func (s *MemoryStore) Set(entry Entry, ttl time.Duration) error {
	s.cache.Set(memoryKey(entry.Kind, entry.Key), entry, ttl)
	return nil
}

// Delete removes one entry.
func (s *MemoryStore) Delete(kind models.SourceKind, key string) error {
	s.cache.Delete(memoryKey(kind, key))
	return nil
}

// Purge removes every entry of the given kind.
func (s *MemoryStore) Purge(kind models.SourceKind) error {
	prefix := string(kind) + ":"
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Delete(key)
		}
	}
	return nil
}
