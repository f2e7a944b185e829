// Package contentcache is the write-through cache between source extractors
// and the context assembler. Caching here is an optimization only: every
// storage failure degrades to a miss or a no-op so the pipeline stays
// correct with caching fully disabled.
package contentcache

import (
	"log"
	"time"

	"coursemind/internal/models"
)

// TTL policy per kind. Document-derived text is expensive to recompute and
// additionally guarded by the timemodified rule, so it lives longest.
const (
	DocumentTTL   = 7 * 24 * time.Hour
	StructuredTTL = 24 * time.Hour
	AggregateTTL  = 12 * time.Hour
	LinkTTL       = 24 * time.Hour
)

// Entry is one cached unit of extracted content.
type Entry struct {
	Kind         models.SourceKind `json:"kind"`
	Key          string            `json:"key"`
	Payload      string            `json:"payload"`
	StoredAt     time.Time         `json:"stored_at"`
	TimeModified time.Time         `json:"time_modified,omitempty"`

	// Aggregate-only metadata, compared structurally on reads so a policy
	// or selectivity change invalidates without scanning the payload.
	PolicyMode models.PolicyMode `json:"policy_mode,omitempty"`
	Selective  bool              `json:"selective,omitempty"`
}

// Store is a cache backend. Implementations must be safe for concurrent
// use; writes are whole-entry replacements.
type Store interface {
	Get(kind models.SourceKind, key string) (Entry, bool, error)
	Set(entry Entry, ttl time.Duration) error
	Delete(kind models.SourceKind, key string) error
	Purge(kind models.SourceKind) error
}

// Manager applies the TTL policy and validity rules on top of a Store.
type Manager struct {
	store Store
	now   func() time.Time
}

// NewManager creates a cache manager over the given backend.
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// SetClock overrides the time source. Used by tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// TTLFor returns the time-to-live for a content kind.
func TTLFor(kind models.SourceKind) time.Duration {
	switch kind {
	case models.KindDocument:
		return DocumentTTL
	case models.KindAggregate:
		return AggregateTTL
	case models.KindLink:
		return LinkTTL
	default:
		return StructuredTTL
	}
}

// Get returns the entry regardless of validity. Storage errors are logged
// and reported as a miss.
func (m *Manager) Get(kind models.SourceKind, key string) (Entry, bool) {
	entry, ok, err := m.store.Get(kind, key)
	if err != nil {
		log.Printf("⚠️  [CACHE] get %s/%s failed, treating as miss: %v", kind, key, err)
		return Entry{}, false
	}
	return entry, ok
}

// GetValid returns the entry only when it passes the validity rules for
// the given current source timemodified (zero means no content check).
func (m *Manager) GetValid(kind models.SourceKind, key string, sourceModified time.Time) (Entry, bool) {
	entry, ok := m.Get(kind, key)
	if !ok {
		return Entry{}, false
	}
	if !m.Valid(entry, sourceModified) {
		return Entry{}, false
	}
	return entry, true
}

// Valid applies the two-part rule: the entry is within its kind TTL, and
// for content-tracked entries the cached timemodified is not older than the
// source's current one. Upstream edits therefore force recomputation even
// before the TTL elapses.
func (m *Manager) Valid(entry Entry, sourceModified time.Time) bool {
	if m.now().Sub(entry.StoredAt) >= TTLFor(entry.Kind) {
		return false
	}
	if !sourceModified.IsZero() && entry.TimeModified.Before(sourceModified) {
		return false
	}
	return true
}

// Set stores an entry, stamping StoredAt. Errors are logged and swallowed.
func (m *Manager) Set(entry Entry) {
	entry.StoredAt = m.now()
	if err := m.store.Set(entry, TTLFor(entry.Kind)); err != nil {
		log.Printf("⚠️  [CACHE] set %s/%s failed, continuing uncached: %v", entry.Kind, entry.Key, err)
	}
}

// Invalidate removes one entry.
func (m *Manager) Invalidate(kind models.SourceKind, key string) {
	if err := m.store.Delete(kind, key); err != nil {
		log.Printf("⚠️  [CACHE] invalidate %s/%s failed: %v", kind, key, err)
	}
}

// Purge removes every entry of a kind.
func (m *Manager) Purge(kind models.SourceKind) {
	if err := m.store.Purge(kind); err != nil {
		log.Printf("⚠️  [CACHE] purge %s failed: %v", kind, err)
	}
}
