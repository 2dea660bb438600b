package indexer

import (
	"context"
	"sync"

	"statslab-assistant/internal/contextutil"
)

// defaultQueueSize bounds how many index requests can wait; enqueueing past
// the bound is reported to the caller instead of blocking a request handler.
const defaultQueueSize = 256

// Worker runs indexing jobs from handlers in the background, off the request
// path. Jobs for the same file still serialize inside the pipeline.
type Worker struct {
	pipeline *Pipeline
	jobs     chan string
	done     chan struct{}
	once     sync.Once
}

// NewWorker creates a worker over the given pipeline.
func NewWorker(pipeline *Pipeline) *Worker {
	return &Worker{
		pipeline: pipeline,
		jobs:     make(chan string, defaultQueueSize),
		done:     make(chan struct{}),
	}
}

// Start launches the worker loop. It drains the queue until ctx is cancelled;
// job errors are logged, never propagated, since the file record already
// carries the failure state.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		logger := contextutil.LoggerFromContext(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case fileID := <-w.jobs:
				if err := w.pipeline.IndexFile(ctx, fileID); err != nil {
					logger.ErrorContext(ctx, "background indexing failed", "file_id", fileID, "error", err)
				}
			}
		}
	}()
}

// Enqueue schedules a file for indexing. Returns false when the queue is
// full; the caller decides whether that is worth a retry.
func (w *Worker) Enqueue(fileID string) bool {
	select {
	case w.jobs <- fileID:
		return true
	default:
		return false
	}
}

// EnqueuePending schedules every file still pending a first pass.
func (w *Worker) EnqueuePending(ctx context.Context) error {
	ids, err := w.pipeline.files.ListPendingIDs(ctx)
	if err != nil {
		return err
	}
	logger := contextutil.LoggerFromContext(ctx)
	for _, id := range ids {
		if !w.Enqueue(id) {
			logger.WarnContext(ctx, "index queue full, dropping pending file", "file_id", id)
		}
	}
	if len(ids) > 0 {
		logger.InfoContext(ctx, "queued pending files for indexing", "count", len(ids))
	}
	return nil
}

// Wait blocks until the worker loop has exited after context cancellation.
func (w *Worker) Wait() {
	<-w.done
}
