package rag

import (
	"errors"

	"statslab-assistant/internal/llm"
)

// ErrNotConfigured is returned when no LLM backend credentials are set.
// Handlers translate it to 503 so callers can distinguish "assistant off"
// from a real failure.
var ErrNotConfigured = errors.New("assistant is not configured")

// AnswerRequest carries a question plus the asking identity.
// ProjectID is optional and narrows retrieval to one project.
type AnswerRequest struct {
	Question  string
	History   []llm.Message
	UserID    string
	Role      string
	ProjectID string
}

// Citation points an answer at a retrieved chunk.
type Citation struct {
	SourceIndex  int     `json:"sourceIndex"`
	FileID       string  `json:"fileId"`
	FileName     string  `json:"fileName"`
	ProjectTitle string  `json:"projectTitle"`
	Preview      string  `json:"preview"`
	Rank         float64 `json:"rank"`
}

// Usage reports the token cost of one answer.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// AnswerResult is a composed answer with its supporting citations.
type AnswerResult struct {
	Content   string     `json:"content"`
	Citations []Citation `json:"citations"`
	Usage     Usage      `json:"usage"`
}
