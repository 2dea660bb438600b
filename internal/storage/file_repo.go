package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_file_store.go -package=mocks statslab-assistant/internal/storage FileStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// FileStore defines the file operations the indexing pipeline needs.
// The pipeline owns the indexing_status, indexing_error, indexed_at and
// chunk_count columns exclusively; it never writes any other file field.
type FileStore interface {
	// GetActive fetches a non-deleted file by id.
	// Returns nil and ErrNotFound if not found.
	GetActive(ctx context.Context, id string) (*FileRecord, error)
	// ListPendingIDs returns ids of non-deleted files whose indexing status
	// is "pending" or unset, in insertion order.
	ListPendingIDs(ctx context.Context) ([]string, error)
	// MarkProcessing sets the status to processing and clears any prior error.
	MarkProcessing(ctx context.Context, id string) error
	// MarkSkipped records a non-text file: status skipped, indexed_at now,
	// chunk count zero.
	MarkSkipped(ctx context.Context, id string) error
	// MarkCompleted records a successful pass: status completed, indexed_at
	// now, the given chunk count, error cleared.
	MarkCompleted(ctx context.Context, id string, chunkCount int) error
	// MarkFailed records a failed pass with the error message.
	MarkFailed(ctx context.Context, id string, message string) error
}

// FileRepo provides file operations backed by SQLite.
// It implements the FileStore interface.
type FileRepo struct {
	db *sql.DB
}

// NewFileRepo creates a new FileRepo.
func NewFileRepo(db *sql.DB) *FileRepo {
	return &FileRepo{db: db}
}

// GetActive fetches a non-deleted file by id.
// Returns nil and ErrNotFound if not found.
func (r *FileRepo) GetActive(ctx context.Context, id string) (*FileRecord, error) {
	var (
		f          FileRecord
		status     sql.NullString
		indexError sql.NullString
		indexedAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, project_id, storage_path, file_type, original_filename,
		        indexing_status, indexing_error, indexed_at, chunk_count
		 FROM files WHERE id = ? AND deleted_at IS NULL`,
		id,
	).Scan(&f.ID, &f.ProjectID, &f.StoragePath, &f.FileType, &f.OriginalFilename,
		&status, &indexError, &indexedAt, &f.ChunkCount)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query file: %w", err)
	}

	f.IndexingStatus = status.String
	f.IndexingError = indexError.String
	if indexedAt.Valid {
		t := indexedAt.Time
		f.IndexedAt = &t
	}
	return &f, nil
}

// ListPendingIDs returns ids of non-deleted files whose indexing status is
// "pending" or unset.
func (r *FileRepo) ListPendingIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM files
		 WHERE (indexing_status = ? OR indexing_status IS NULL OR indexing_status = '')
		   AND deleted_at IS NULL
		 ORDER BY rowid`,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending files: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan file id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// MarkProcessing sets the status to processing and clears any prior error.
func (r *FileRepo) MarkProcessing(ctx context.Context, id string) error {
	return r.updateStatus(ctx,
		`UPDATE files SET indexing_status = ?, indexing_error = NULL WHERE id = ?`,
		StatusProcessing, id)
}

// MarkSkipped records a non-text file: status skipped, indexed_at now, zero chunks.
func (r *FileRepo) MarkSkipped(ctx context.Context, id string) error {
	return r.updateStatus(ctx,
		`UPDATE files SET indexing_status = ?, indexed_at = CURRENT_TIMESTAMP, chunk_count = 0 WHERE id = ?`,
		StatusSkipped, id)
}

// MarkCompleted records a successful pass.
func (r *FileRepo) MarkCompleted(ctx context.Context, id string, chunkCount int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE files SET indexing_status = ?, indexed_at = CURRENT_TIMESTAMP,
		        chunk_count = ?, indexing_error = NULL
		 WHERE id = ?`,
		StatusCompleted, chunkCount, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark file completed: %w", err)
	}
	return nil
}

// MarkFailed records a failed pass with the error message.
func (r *FileRepo) MarkFailed(ctx context.Context, id string, message string) error {
	return r.updateStatus(ctx,
		`UPDATE files SET indexing_status = ?, indexing_error = ? WHERE id = ?`,
		StatusFailed, message, id)
}

func (r *FileRepo) updateStatus(ctx context.Context, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update file status: %w", err)
	}
	return nil
}
