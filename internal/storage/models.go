package storage

import (
	"encoding/json"
	"time"
)

// Indexing status values for a file. The indexer owns these fields; every
// other column on files is owned by the surrounding application.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

// FileRecord represents an uploaded file in the database.
type FileRecord struct {
	ID               string
	ProjectID        string
	StoragePath      string
	FileType         string // Declared media type (e.g. "text/markdown")
	OriginalFilename string
	IndexingStatus   string
	IndexingError    string // Empty when no error is recorded
	IndexedAt        *time.Time
	ChunkCount       int
}

// ChunkMetadata is the free-form metadata stored alongside each chunk.
type ChunkMetadata struct {
	Filename string `json:"filename"`
	FileType string `json:"fileType"`
}

// ChunkRecord represents one retrievable segment of an indexed file.
// The project id is denormalized from the owning file so the permission
// filter is a single indexed predicate at query time.
type ChunkRecord struct {
	ID         string
	FileID     string
	ProjectID  string
	ChunkIndex int // Zero-based, unique per file
	Content    string
	TokenCount int
	Metadata   ChunkMetadata
}

// ChunkResult is a retrieval hit: a chunk joined with its file and project.
// Rank is higher for more relevant matches; substring-fallback hits carry 0.
type ChunkResult struct {
	ID               string
	Content          string
	ChunkIndex       int
	Metadata         ChunkMetadata
	FileID           string
	OriginalFilename string
	FileType         string
	ProjectID        string
	ProjectTitle     string
	Rank             float64
}

// Conversation groups assistant messages for one user, optionally scoped to
// a project.
type Conversation struct {
	ID           string
	UserID       string
	ProjectID    string // Empty when the conversation is not project-scoped
	ProjectTitle string // Joined from projects; empty when unscoped
	Title        string
	LastMessage  string // Populated by ListByUser only
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is one turn in a conversation. Assistant messages carry the
// citation list and token usage produced by the answer composer.
type Message struct {
	ID             string
	ConversationID string
	Role           string // "user" or "assistant"
	Content        string
	Citations      json.RawMessage // JSON array; nil for user messages
	InputTokens    int
	OutputTokens   int
	CreatedAt      time.Time
}
