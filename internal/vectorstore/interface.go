package vectorstore

import "context"

//go:generate mockgen -source=interface.go -destination=mocks/mock_vector_store.go -package=mocks

// Point is a single embedded chunk destined for the vector store.
// ID must be a UUID; Meta travels as the point payload.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// VectorStore persists chunk embeddings. Retrieval ranking runs over the
// relational full-text index, so this interface covers lifecycle only.
type VectorStore interface {
	// EnsureCollection creates the collection if missing and validates the
	// vector size if it already exists.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error
}
