package rag

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"statslab-assistant/internal/contextutil"
	"statslab-assistant/internal/storage"
)

var nonSearchable = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// searchTerms derives full-text search terms from a free-form question:
// punctuation stripped, whitespace-split, single-character tokens dropped.
// An empty result means the question had no searchable content and the
// caller should use the substring fallback.
func searchTerms(question string) []string {
	cleaned := nonSearchable.ReplaceAllString(question, " ")

	var terms []string
	for _, token := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(token) <= 1 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// Retriever finds the chunks relevant to a question that the asking user is
// allowed to see.
type Retriever struct {
	chunks storage.ChunkStore
	topK   int
}

// NewRetriever creates a retriever returning at most topK chunks.
func NewRetriever(chunks storage.ChunkStore, topK int) *Retriever {
	return &Retriever{chunks: chunks, topK: topK}
}

// Search runs permission-filtered retrieval for the request. Ranked search
// runs when the question yields terms; otherwise the question is matched as
// a substring with zero rank. Permission filtering happens inside the query,
// never after ranking.
func (r *Retriever) Search(ctx context.Context, req AnswerRequest) ([]*storage.ChunkResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	terms := searchTerms(req.Question)
	results, err := r.chunks.Search(ctx, storage.SearchParams{
		Terms:     terms,
		Question:  req.Question,
		UserID:    req.UserID,
		Role:      req.Role,
		ProjectID: req.ProjectID,
		Limit:     r.topK,
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "retrieval finished",
		"terms", len(terms), "results", len(results), "project_id", req.ProjectID)
	return results, nil
}
