package weblink

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"coursemind/internal/models"
)

// LinkStore is the durable home of link records, keyed by (owner, urlHash).
type LinkStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewLinkStore wraps the row store over an opened database.
func NewLinkStore(db *sql.DB) *LinkStore {
	return &LinkStore{db: db, now: time.Now}
}

// SetClock overrides the time source. Used by tests.
func (s *LinkStore) SetClock(now func() time.Time) {
	s.now = now
}

// HashURL returns the identity hash for a URL.
func HashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// ByOwner returns every link record of one owner, stable by URL.
func (s *LinkStore) ByOwner(ctx context.Context, ownerID string) ([]models.LinkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, url, url_hash, title, content_hash, content, status, last_fetch, last_error, timemodified
		 FROM link_records WHERE owner_id = ? ORDER BY url`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var records []models.LinkRecord
	for rows.Next() {
		record, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// All returns every link record in the system, used by the refresh job.
func (s *LinkStore) All(ctx context.Context) ([]models.LinkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, url, url_hash, title, content_hash, content, status, last_fetch, last_error, timemodified
		 FROM link_records ORDER BY owner_id, url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var records []models.LinkRecord
	for rows.Next() {
		record, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanLink(rows *sql.Rows) (models.LinkRecord, error) {
	var r models.LinkRecord
	var lastFetch, tm int64
	if err := rows.Scan(&r.ID, &r.OwnerID, &r.URL, &r.URLHash, &r.Title, &r.ContentHash,
		&r.Content, &r.Status, &lastFetch, &r.LastError, &tm); err != nil {
		return models.LinkRecord{}, err
	}
	if lastFetch > 0 {
		r.LastFetch = time.Unix(lastFetch, 0)
	}
	r.TimeModified = time.Unix(tm, 0)
	return r, nil
}

// Save stores the record, creating it when no row exists for the identity.
func (s *LinkStore) Save(ctx context.Context, record *models.LinkRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.URLHash == "" {
		record.URLHash = HashURL(record.URL)
	}
	record.TimeModified = s.now()

	var lastFetch int64
	if !record.LastFetch.IsZero() {
		lastFetch = record.LastFetch.Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO link_records (id, owner_id, url, url_hash, title, content_hash, content, status, last_fetch, last_error, timemodified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id, url_hash) DO UPDATE SET
		   title = excluded.title,
		   content_hash = excluded.content_hash,
		   content = excluded.content,
		   status = excluded.status,
		   last_fetch = excluded.last_fetch,
		   last_error = excluded.last_error,
		   timemodified = excluded.timemodified`,
		record.ID, record.OwnerID, record.URL, record.URLHash, record.Title, record.ContentHash,
		record.Content, record.Status, lastFetch, record.LastError, record.TimeModified.Unix())
	if err != nil {
		return fmt.Errorf("failed to save link record: %w", err)
	}
	return nil
}

// SyncOwner diffs the owner's stored records against the configured URL
// set: new URLs get pending records, records for removed URLs are deleted.
// Returns the owner's resulting records.
func (s *LinkStore) SyncOwner(ctx context.Context, ownerID string, urls []string) ([]models.LinkRecord, error) {
	existing, err := s.ByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]string, len(urls)) // urlHash -> url
	for _, u := range urls {
		wanted[HashURL(u)] = u
	}

	for _, record := range existing {
		if _, keep := wanted[record.URLHash]; keep {
			delete(wanted, record.URLHash)
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM link_records WHERE owner_id = ? AND url_hash = ?`,
			ownerID, record.URLHash); err != nil {
			return nil, fmt.Errorf("failed to delete orphaned link: %w", err)
		}
	}

	for urlHash, u := range wanted {
		record := &models.LinkRecord{
			OwnerID: ownerID,
			URL:     u,
			URLHash: urlHash,
			Status:  models.LinkPending,
		}
		if err := s.Save(ctx, record); err != nil {
			return nil, err
		}
	}

	return s.ByOwner(ctx, ownerID)
}
