package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks statslab-assistant/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// SearchParams selects one of the chunk search query variants.
// Terms empty means the substring fallback: Question is matched verbatim with
// LIKE and every hit carries rank 0.
type SearchParams struct {
	Terms     []string
	Question  string
	UserID    string
	Role      string
	ProjectID string // Empty means no project restriction
	Limit     int
}

// ChunkStore defines the chunk storage operations used by the indexer and
// the retriever.
type ChunkStore interface {
	// Replace atomically deletes all chunks for the file and inserts the new
	// set in a single transaction. Chunk IDs must be set by the caller.
	Replace(ctx context.Context, fileID string, chunks []*ChunkRecord) error
	// ListIDsByFile returns all chunk IDs for a file, ordered by chunk_index.
	ListIDsByFile(ctx context.Context, fileID string) ([]string, error)
	// CountByFile returns the number of chunks stored for a file.
	CountByFile(ctx context.Context, fileID string) (int, error)
	// Search runs the permission-filtered ranked query described by params.
	Search(ctx context.Context, params SearchParams) ([]*ChunkResult, error)
}

// ChunkRepo provides chunk operations backed by SQLite.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Replace atomically deletes all chunks for the file and inserts the new set.
// This is the re-indexing atomicity boundary: a reader never observes a mix
// of old and new chunk generations.
func (r *ChunkRepo) Replace(ctx context.Context, fileID string, chunks []*ChunkRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_chunks WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	for _, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO document_chunks (id, file_id, project_id, chunk_index, content, token_count, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			chunk.ID, chunk.FileID, chunk.ProjectID, chunk.ChunkIndex,
			chunk.Content, chunk.TokenCount, string(meta),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk replace: %w", err)
	}
	return nil
}

// ListIDsByFile returns all chunk IDs for a file, ordered by chunk_index.
// Returns an empty slice if no chunks exist (not an error).
// Used to collect vector point IDs for deletion before re-indexing.
func (r *ChunkRepo) ListIDsByFile(ctx context.Context, fileID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM document_chunks WHERE file_id = ? ORDER BY chunk_index",
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// CountByFile returns the number of chunks stored for a file.
func (r *ChunkRepo) CountByFile(ctx context.Context, fileID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM document_chunks WHERE file_id = ?", fileID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Search runs the permission-filtered ranked query described by params.
//
// The query is assembled from independent clauses (ranked vs. fallback,
// admin vs. access-set, global vs. project-scoped) instead of eight
// hand-written variants, so each axis is testable on its own. The permission
// predicate is always applied inside the query, before ranking.
func (r *ChunkRepo) Search(ctx context.Context, p SearchParams) ([]*ChunkResult, error) {
	useFallback := len(p.Terms) == 0

	var (
		query strings.Builder
		where []string
		args  []any
	)

	if useFallback {
		query.WriteString(
			`SELECT dc.id, dc.content, dc.chunk_index, dc.metadata, dc.file_id,
			        f.original_filename, f.file_type, dc.project_id, p.title,
			        0 AS rank
			 FROM document_chunks dc
			 JOIN files f ON dc.file_id = f.id
			 JOIN projects p ON dc.project_id = p.id`)
		where = append(where, "dc.content LIKE ?")
		args = append(args, "%"+p.Question+"%")
	} else {
		// bm25 is smaller-is-better; negate so higher rank = more relevant.
		query.WriteString(
			`SELECT dc.id, dc.content, dc.chunk_index, dc.metadata, dc.file_id,
			        f.original_filename, f.file_type, dc.project_id, p.title,
			        -bm25(chunk_fts) AS rank
			 FROM chunk_fts
			 JOIN document_chunks dc ON dc.rowid = chunk_fts.rowid
			 JOIN files f ON dc.file_id = f.id
			 JOIN projects p ON dc.project_id = p.id`)
		where = append(where, "chunk_fts MATCH ?")
		args = append(args, matchExpression(p.Terms))
	}

	where = append(where, "f.deleted_at IS NULL")

	if p.Role != "admin" {
		// Access set: projects the user created, is a member of, or is
		// assigned to via an action item. UNION deduplicates by design.
		where = append(where, `dc.project_id IN (
			SELECT id FROM projects WHERE created_by = ? AND deleted_at IS NULL
			UNION
			SELECT project_id FROM project_members WHERE user_id = ?
			UNION
			SELECT ai.project_id FROM action_items ai
			LEFT JOIN action_item_assignees aia ON ai.id = aia.action_item_id
			WHERE ai.deleted_at IS NULL AND (ai.assigned_to = ? OR aia.user_id = ?)
		)`)
		args = append(args, p.UserID, p.UserID, p.UserID, p.UserID)
	}

	if p.ProjectID != "" {
		where = append(where, "dc.project_id = ?")
		args = append(args, p.ProjectID)
	}

	query.WriteString(" WHERE " + strings.Join(where, " AND "))
	if !useFallback {
		query.WriteString(" ORDER BY rank DESC")
	}
	query.WriteString(" LIMIT ?")
	args = append(args, p.Limit)

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []*ChunkResult
	for rows.Next() {
		var (
			res  ChunkResult
			meta string
		)
		err := rows.Scan(&res.ID, &res.Content, &res.ChunkIndex, &meta, &res.FileID,
			&res.OriginalFilename, &res.FileType, &res.ProjectID, &res.ProjectTitle,
			&res.Rank)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &res.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
		}
		results = append(results, &res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return results, nil
}

// matchExpression builds a conjunctive FTS5 match expression. Each term is
// quoted so it is matched as a plain token, never interpreted as FTS syntax.
func matchExpression(terms []string) string {
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " AND ")
}
