package weblink

import (
	"context"

	"coursemind/internal/models"
)

// Service bundles the link store and ingestor behind the read-and-refresh
// surface the context assembler consumes.
type Service struct {
	store    *LinkStore
	ingestor *Ingestor
}

// NewService creates the combined surface.
func NewService(store *LinkStore, ingestor *Ingestor) *Service {
	return &Service{store: store, ingestor: ingestor}
}

// Records returns one owner's link records.
func (s *Service) Records(ctx context.Context, ownerID string) ([]models.LinkRecord, error) {
	return s.store.ByOwner(ctx, ownerID)
}

// EnsureFresh refetches the record if its cached extract is stale.
func (s *Service) EnsureFresh(ctx context.Context, record *models.LinkRecord) error {
	return s.ingestor.EnsureFresh(ctx, record)
}

// Sync replaces one owner's configured URLs and returns the resulting
// records, newly added ones in pending state.
func (s *Service) Sync(ctx context.Context, ownerID string, urls []string) ([]models.LinkRecord, error) {
	return s.store.SyncOwner(ctx, ownerID, urls)
}
