package indexer

import "statslab-assistant/internal/storage"

// Chunk is one bounded, overlapping segment of a document's text.
type Chunk struct {
	Content    string                // Trimmed segment text
	Index      int                   // Zero-based emission order within the file
	TokenCount int                   // Heuristic estimate, not a tokenizer count
	Metadata   storage.ChunkMetadata // Originating filename and media type
}
