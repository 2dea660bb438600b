package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"statslab-assistant/internal/contextutil"
	"statslab-assistant/internal/indexer"
	"statslab-assistant/internal/storage"
)

// IndexHandler serves file indexing status and the admin re-index trigger.
type IndexHandler struct {
	files  storage.FileStore
	worker *indexer.Worker
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(files storage.FileStore, worker *indexer.Worker) *IndexHandler {
	return &IndexHandler{files: files, worker: worker}
}

// FileStatusResponse is the wire shape of a file's indexing state.
type FileStatusResponse struct {
	ID             string     `json:"id"`
	IndexingStatus string     `json:"indexingStatus"`
	IndexingError  string     `json:"indexingError,omitempty"`
	IndexedAt      *time.Time `json:"indexedAt,omitempty"`
	ChunkCount     int        `json:"chunkCount"`
}

// FileStatus handles GET /api/assistant/files/{fileID}/status.
func (h *IndexHandler) FileStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	fileID := chi.URLParam(r, "fileID")

	file, err := h.files.GetActive(ctx, fileID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(ctx, w, http.StatusNotFound, "File not found")
			return
		}
		logger.ErrorContext(ctx, "failed to load file", "file_id", fileID, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to load file")
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"file": FileStatusResponse{
			ID:             file.ID,
			IndexingStatus: file.IndexingStatus,
			IndexingError:  file.IndexingError,
			IndexedAt:      file.IndexedAt,
			ChunkCount:     file.ChunkCount,
		},
	})
}

// Reindex handles POST /api/assistant/reindex/{fileID}. The route is mounted
// behind the admin middleware; indexing itself runs in the background.
func (h *IndexHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	fileID := chi.URLParam(r, "fileID")

	if _, err := h.files.GetActive(ctx, fileID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(ctx, w, http.StatusNotFound, "File not found")
			return
		}
		logger.ErrorContext(ctx, "failed to load file", "file_id", fileID, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to load file")
		return
	}

	if !h.worker.Enqueue(fileID) {
		logger.WarnContext(ctx, "index queue full", "file_id", fileID)
		writeError(ctx, w, http.StatusServiceUnavailable, "Indexing queue is full, try again later")
		return
	}

	logger.InfoContext(ctx, "re-indexing queued", "file_id", fileID)
	writeJSON(ctx, w, http.StatusAccepted, map[string]any{"message": "Re-indexing started"})
}
