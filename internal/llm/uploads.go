package llm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coursemind/internal/models"
)

// UploadStore remembers provider-side file IDs by local content hash so
// identical bytes are uploaded at most once per provider.
type UploadStore struct {
	db *sql.DB
}

// NewUploadStore wraps the row store over an opened database.
func NewUploadStore(db *sql.DB) *UploadStore {
	return &UploadStore{db: db}
}

// Lookup returns the remembered remote file for (contentHash, provider).
func (s *UploadStore) Lookup(ctx context.Context, contentHash string, provider models.ProviderKind) (*models.UploadedFileRef, bool, error) {
	var ref models.UploadedFileRef
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash, remote_file_id, label, file_type FROM uploaded_files
		 WHERE content_hash = ? AND provider = ?`,
		contentHash, provider,
	).Scan(&ref.LocalContentHash, &ref.RemoteFileID, &ref.Label, &ref.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up uploaded file: %w", err)
	}
	ref.AllowedForInference = true
	return &ref, true, nil
}

// Save remembers a freshly uploaded file.
func (s *UploadStore) Save(ctx context.Context, ref *models.UploadedFileRef, provider models.ProviderKind) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploaded_files (content_hash, provider, remote_file_id, label, file_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(content_hash, provider) DO UPDATE SET
		   remote_file_id = excluded.remote_file_id,
		   label = excluded.label,
		   file_type = excluded.file_type`,
		ref.LocalContentHash, provider, ref.RemoteFileID, ref.Label, ref.Type, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save uploaded file ref: %w", err)
	}
	return nil
}
