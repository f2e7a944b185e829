package contentcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"coursemind/internal/database"
	"coursemind/internal/models"
)

// TestValidityTimeBound verifies an entry expires once its kind TTL
// elapses on a fake clock.
func TestValidityTimeBound(t *testing.T) {
	manager := NewManager(NewMemoryStore())
	base := time.Unix(100000, 0)
	now := base
	manager.SetClock(func() time.Time { return now })

	manager.Set(Entry{Kind: models.KindPage, Key: "1", Payload: "body"})

	if _, ok := manager.GetValid(models.KindPage, "1", time.Time{}); !ok {
		t.Fatal("fresh entry reported invalid")
	}

	now = base.Add(StructuredTTL - time.Minute)
	if _, ok := manager.GetValid(models.KindPage, "1", time.Time{}); !ok {
		t.Error("entry invalid before TTL elapsed")
	}

	now = base.Add(StructuredTTL)
	if _, ok := manager.GetValid(models.KindPage, "1", time.Time{}); ok {
		t.Error("entry still valid after TTL elapsed")
	}
}

// TestValidityContentBound verifies a source edit invalidates before the
// TTL elapses.
func TestValidityContentBound(t *testing.T) {
	manager := NewManager(NewMemoryStore())
	base := time.Unix(100000, 0)
	manager.SetClock(func() time.Time { return base })

	sourceModified := time.Unix(50000, 0)
	manager.Set(Entry{Kind: models.KindPage, Key: "1", Payload: "body", TimeModified: sourceModified})

	if _, ok := manager.GetValid(models.KindPage, "1", sourceModified); !ok {
		t.Fatal("entry invalid with unchanged source")
	}

	bumped := sourceModified.Add(time.Hour)
	if _, ok := manager.GetValid(models.KindPage, "1", bumped); ok {
		t.Error("entry still valid after source edit")
	}
}

// TestTTLPolicyTable verifies per-kind TTL assignment.
func TestTTLPolicyTable(t *testing.T) {
	tests := []struct {
		kind models.SourceKind
		want time.Duration
	}{
		{models.KindDocument, DocumentTTL},
		{models.KindAggregate, AggregateTTL},
		{models.KindLink, LinkTTL},
		{models.KindPage, StructuredTTL},
		{models.KindQuiz, StructuredTTL},
	}
	for _, tt := range tests {
		if got := TTLFor(tt.kind); got != tt.want {
			t.Errorf("TTLFor(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Get(models.SourceKind, string) (Entry, bool, error) {
	return Entry{}, false, errors.New("backend down")
}
func (failingStore) Set(Entry, time.Duration) error           { return errors.New("backend down") }
func (failingStore) Delete(models.SourceKind, string) error   { return errors.New("backend down") }
func (failingStore) Purge(models.SourceKind) error            { return errors.New("backend down") }

// TestStorageErrorsDegradeToMiss verifies a broken backend never
// propagates errors to callers.
func TestStorageErrorsDegradeToMiss(t *testing.T) {
	manager := NewManager(failingStore{})

	if _, ok := manager.Get(models.KindPage, "1"); ok {
		t.Error("broken backend reported a hit")
	}
	// Must not panic or error.
	manager.Set(Entry{Kind: models.KindPage, Key: "1", Payload: "x"})
	manager.Invalidate(models.KindPage, "1")
	manager.Purge(models.KindPage)
}

// TestMemoryStorePurgeByKind verifies purge removes only one kind.
func TestMemoryStorePurgeByKind(t *testing.T) {
	store := NewMemoryStore()
	store.Set(Entry{Kind: models.KindPage, Key: "1", Payload: "a"}, time.Hour)
	store.Set(Entry{Kind: models.KindPage, Key: "2", Payload: "b"}, time.Hour)
	store.Set(Entry{Kind: models.KindQuiz, Key: "1", Payload: "c"}, time.Hour)

	if err := store.Purge(models.KindPage); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if _, ok, _ := store.Get(models.KindPage, "1"); ok {
		t.Error("purged entry survived")
	}
	if _, ok, _ := store.Get(models.KindQuiz, "1"); !ok {
		t.Error("other kind purged too")
	}
}

// TestDocumentRowsRoundTrip verifies hash-keyed storage with TTL expiry
// and the sweep job.
func TestDocumentRowsRoundTrip(t *testing.T) {
	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	defer db.Close()
	if err := db.Initialize(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	rows := NewDocumentRows(db.DB)
	base := time.Unix(1000000, 0)
	now := base
	rows.SetClock(func() time.Time { return now })
	ctx := context.Background()

	if _, ok := rows.GetByHash(ctx, "h1"); ok {
		t.Fatal("hit on empty store")
	}

	rows.Put(ctx, "h1", "extracted text")
	if text, ok := rows.GetByHash(ctx, "h1"); !ok || text != "extracted text" {
		t.Fatalf("round trip failed: %q %v", text, ok)
	}

	now = base.Add(DocumentTTL + time.Hour)
	if _, ok := rows.GetByHash(ctx, "h1"); ok {
		t.Error("expired row still served")
	}

	swept, err := rows.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}
}
