package contentcache

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"
)

// DocumentRows is the durable row store for extracted document text. Rows
// are keyed by content hash — one row per unique binary payload — so the
// same PDF attached to ten activities is extracted once, no matter which
// course references it.
type DocumentRows struct {
	db  *sql.DB
	now func() time.Time
}

// NewDocumentRows wraps the row store over an opened database.
func NewDocumentRows(db *sql.DB) *DocumentRows {
	return &DocumentRows{db: db, now: time.Now}
}

// SetClock overrides the time source. Used by tests.
func (r *DocumentRows) SetClock(now func() time.Time) {
	r.now = now
}

// GetByHash returns the stored text for a content hash if present and
// within the document TTL. Storage errors degrade to a miss.
func (r *DocumentRows) GetByHash(ctx context.Context, contentHash string) (string, bool) {
	var text string
	var storedAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT extracted_text, stored_at FROM document_cache WHERE content_hash = ?`,
		contentHash,
	).Scan(&text, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		log.Printf("⚠️  [DOC-CACHE] lookup %s failed, treating as miss: %v", contentHash, err)
		return "", false
	}

	if r.now().Sub(time.Unix(storedAt, 0)) >= DocumentTTL {
		return "", false
	}
	return text, true
}

// Put stores or replaces the extracted text for a content hash.
func (r *DocumentRows) Put(ctx context.Context, contentHash, text string) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO document_cache (content_hash, extracted_text, stored_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET extracted_text = excluded.extracted_text, stored_at = excluded.stored_at`,
		contentHash, text, r.now().Unix(),
	)
	if err != nil {
		log.Printf("⚠️  [DOC-CACHE] store %s failed, continuing uncached: %v", contentHash, err)
	}
}

// SweepExpired deletes rows older than the document TTL. Returns the number
// of rows removed; called from the scheduled cache sweep job.
func (r *DocumentRows) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-DocumentTTL).Unix()
	res, err := r.db.ExecContext(ctx, `DELETE FROM document_cache WHERE stored_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
