package rag

import (
	"regexp"
	"strconv"

	"statslab-assistant/internal/storage"
)

var citationPattern = regexp.MustCompile(`\[Source (\d+)\]`)

const previewLength = 150

// extractCitations finds the distinct [Source N] references in an answer and
// resolves them against the retrieved chunks. References outside 1..len(chunks)
// are ignored. Citations come back in source-index order, each with a short
// content preview.
func extractCitations(answer string, chunks []*storage.ChunkResult) []Citation {
	cited := make(map[int]bool)
	for _, match := range citationPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if n >= 1 && n <= len(chunks) {
			cited[n] = true
		}
	}

	var citations []Citation
	for n := 1; n <= len(chunks); n++ {
		if !cited[n] {
			continue
		}
		chunk := chunks[n-1]
		citations = append(citations, Citation{
			SourceIndex:  n,
			FileID:       chunk.FileID,
			FileName:     chunk.OriginalFilename,
			ProjectTitle: chunk.ProjectTitle,
			Preview:      preview(chunk.Content),
			Rank:         chunk.Rank,
		})
	}
	return citations
}

// preview truncates content to the preview length at a rune boundary.
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}
