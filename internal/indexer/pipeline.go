package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"statslab-assistant/internal/contextutil"
	"statslab-assistant/internal/extract"
	"statslab-assistant/internal/storage"
	"statslab-assistant/internal/vectorstore"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks statslab-assistant/internal/indexer Embedder

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline drives a file through the indexing lifecycle:
// pending -> processing -> completed | skipped | failed.
type Pipeline struct {
	files      storage.FileStore
	chunks     storage.ChunkStore
	extractor  extract.Extractor
	embedder   Embedder
	vectors    vectorstore.VectorStore
	collection string
	chunker    *Chunker

	mu    sync.Mutex
	locks map[string]*fileLock
}

// fileLock serializes indexing runs for one file. The reference count tracks
// holders and waiters so the map entry can be dropped once the last one
// releases.
type fileLock struct {
	mu   sync.Mutex
	refs int
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(
	files storage.FileStore,
	chunks storage.ChunkStore,
	extractor extract.Extractor,
	embedder Embedder,
	vectors vectorstore.VectorStore,
	collection string,
	chunker *Chunker,
) *Pipeline {
	return &Pipeline{
		files:      files,
		chunks:     chunks,
		extractor:  extractor,
		embedder:   embedder,
		vectors:    vectors,
		collection: collection,
		chunker:    chunker,
		locks:      make(map[string]*fileLock),
	}
}

// acquireFileLock blocks until this goroutine holds the indexing lock for the
// file. Two concurrent IndexFile calls for the same file serialize here, so a
// re-index never interleaves with an in-flight run.
func (p *Pipeline) acquireFileLock(fileID string) *fileLock {
	p.mu.Lock()
	lock, ok := p.locks[fileID]
	if !ok {
		lock = &fileLock{}
		p.locks[fileID] = lock
	}
	lock.refs++
	p.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// releaseFileLock unlocks the file and drops the map entry once nobody else
// holds or waits on it, so the lock table does not grow with corpus size.
func (p *Pipeline) releaseFileLock(fileID string, lock *fileLock) {
	lock.mu.Unlock()

	p.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(p.locks, fileID)
	}
	p.mu.Unlock()
}

// IndexFile runs the full indexing pass for one file. It is idempotent: a
// second call replaces the previous chunk generation rather than appending.
// A missing or deleted file is logged and ignored, not an error.
func (p *Pipeline) IndexFile(ctx context.Context, fileID string) error {
	lock := p.acquireFileLock(fileID)
	defer p.releaseFileLock(fileID, lock)

	logger := contextutil.LoggerFromContext(ctx)

	file, err := p.files.GetActive(ctx, fileID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.WarnContext(ctx, "file not found, skipping indexing", "file_id", fileID)
			return nil
		}
		return fmt.Errorf("failed to load file: %w", err)
	}

	if err := p.files.MarkProcessing(ctx, fileID); err != nil {
		return fmt.Errorf("failed to mark file processing: %w", err)
	}

	if err := p.indexFile(ctx, file); err != nil {
		logger.ErrorContext(ctx, "indexing failed", "file_id", fileID, "error", err)
		if markErr := p.files.MarkFailed(ctx, fileID, err.Error()); markErr != nil {
			logger.ErrorContext(ctx, "failed to record indexing failure", "file_id", fileID, "error", markErr)
		}
		return err
	}
	return nil
}

// indexFile is the body of one pass; any error it returns flips the file to
// failed with the error message preserved.
func (p *Pipeline) indexFile(ctx context.Context, file *storage.FileRecord) error {
	logger := contextutil.LoggerFromContext(ctx)

	text, ok, err := p.extractor.ExtractText(ctx, file.StoragePath, file.FileType)
	if err != nil {
		return fmt.Errorf("failed to extract text: %w", err)
	}
	if !ok {
		logger.InfoContext(ctx, "file type is not text-bearing, skipping",
			"file_id", file.ID, "file_type", file.FileType)
		return p.files.MarkSkipped(ctx, file.ID)
	}

	meta := storage.ChunkMetadata{
		Filename: file.OriginalFilename,
		FileType: file.FileType,
	}
	chunks := p.chunker.Chunk(text, meta)
	if len(chunks) == 0 {
		logger.InfoContext(ctx, "file produced no chunks", "file_id", file.ID)
		return p.completeFile(ctx, file.ID, nil, nil)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	records := make([]*storage.ChunkRecord, len(chunks))
	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		id := uuid.New().String()
		records[i] = &storage.ChunkRecord{
			ID:         id,
			FileID:     file.ID,
			ProjectID:  file.ProjectID,
			ChunkIndex: chunk.Index,
			Content:    chunk.Content,
			TokenCount: chunk.TokenCount,
			Metadata:   chunk.Metadata,
		}
		points[i] = vectorstore.Point{
			ID:  id,
			Vec: vectors[i],
			Meta: map[string]any{
				"file_id":     file.ID,
				"project_id":  file.ProjectID,
				"chunk_index": chunk.Index,
			},
		}
	}

	return p.completeFile(ctx, file.ID, records, points)
}

// completeFile swaps in the new chunk generation and marks the file done.
// The relational swap is transactional; vector cleanup is best-effort, since
// an orphaned point is harmless (ranking never reads the vector store) and
// the next re-index will retry the delete.
func (p *Pipeline) completeFile(ctx context.Context, fileID string, records []*storage.ChunkRecord, points []vectorstore.Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	oldIDs, err := p.chunks.ListIDsByFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to list existing chunks: %w", err)
	}

	if len(oldIDs) > 0 {
		if err := p.vectors.Delete(ctx, p.collection, oldIDs); err != nil {
			logger.WarnContext(ctx, "failed to delete stale vectors",
				"file_id", fileID, "count", len(oldIDs), "error", err)
		}
	}

	if err := p.chunks.Replace(ctx, fileID, records); err != nil {
		return fmt.Errorf("failed to replace chunks: %w", err)
	}

	if len(points) > 0 {
		if err := p.vectors.Upsert(ctx, p.collection, points); err != nil {
			return fmt.Errorf("failed to upsert vectors: %w", err)
		}
	}

	if err := p.files.MarkCompleted(ctx, fileID, len(records)); err != nil {
		return fmt.Errorf("failed to mark file completed: %w", err)
	}

	logger.InfoContext(ctx, "file indexed", "file_id", fileID, "chunks", len(records))
	return nil
}

// IndexPending indexes every file still waiting for a first pass. One file's
// failure does not stop the sweep; the count of successfully indexed files is
// returned alongside the ids that failed.
func (p *Pipeline) IndexPending(ctx context.Context) (indexed int, failed []string, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	ids, err := p.files.ListPendingIDs(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list pending files: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil, nil
	}

	logger.InfoContext(ctx, "indexing pending files", "count", len(ids))
	for _, id := range ids {
		if err := p.IndexFile(ctx, id); err != nil {
			failed = append(failed, id)
			continue
		}
		indexed++
	}

	logger.InfoContext(ctx, "pending sweep finished", "indexed", indexed, "failed", len(failed))
	return indexed, failed, nil
}
