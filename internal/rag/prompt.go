package rag

import (
	"fmt"
	"strings"

	"statslab-assistant/internal/storage"
)

const noResultsPrompt = `You are a helpful research assistant for the Stats Lab. You help users understand and analyze research documents.

No relevant documents were found for this query. Let the user know you couldn't find matching content in the indexed documents, but still try to help if you can based on the question alone.`

// buildSystemPrompt renders the retrieved chunks into the grounding prompt.
// Sources are numbered 1..n in retrieval order; citation extraction maps
// [Source N] references back to the same numbering.
func buildSystemPrompt(chunks []*storage.ChunkResult) string {
	if len(chunks) == 0 {
		return noResultsPrompt
	}

	var sources strings.Builder
	for i, chunk := range chunks {
		fmt.Fprintf(&sources, "\n[Source %d] File: %q (Project: %s)\n%s\n",
			i+1, chunk.OriginalFilename, chunk.ProjectTitle, chunk.Content)
	}

	return fmt.Sprintf(`You are a helpful research assistant for the Stats Lab. You help users understand and analyze research documents uploaded to their projects.

Answer the user's question based on the following document excerpts. Cite your sources using [Source N] notation. If the documents don't contain enough information, say so clearly.

RETRIEVED DOCUMENTS:
%s

GUIDELINES:
- Be accurate and cite specific sources
- If multiple sources support a point, cite all of them
- If information is not in the sources, clearly state that
- Use markdown formatting for readability
- Be concise but thorough`, sources.String())
}
