package indexer

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"statslab-assistant/internal/storage"
)

func TestNewChunker(t *testing.T) {
	chunker := NewChunker(500, 50)
	if chunker == nil {
		t.Fatal("NewChunker() returned nil")
	}
	if chunker.charsPerToken != DefaultCharsPerToken {
		t.Errorf("charsPerToken = %d, want %d", chunker.charsPerToken, DefaultCharsPerToken)
	}
}

func TestChunker_EstimateTokens(t *testing.T) {
	chunker := NewChunker(500, 50)

	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "exact multiple", text: strings.Repeat("a", 8), want: 2},
		{name: "rounds up", text: strings.Repeat("a", 9), want: 3},
		{name: "single char", text: "a", want: 1},
		{name: "multibyte runes counted once", text: "日本語テスト", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chunker.EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestChunker_Chunk(t *testing.T) {
	meta := storage.ChunkMetadata{Filename: "notes.md", FileType: "text/markdown"}

	tests := []struct {
		name          string
		maxTokens     int
		overlapTokens int
		text          string
		check         func(t *testing.T, chunks []Chunk)
	}{
		{
			name:      "empty input",
			maxTokens: 100,
			text:      "",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 0 {
					t.Errorf("got %d chunks, want 0", len(chunks))
				}
			},
		},
		{
			name:      "whitespace only input",
			maxTokens: 100,
			text:      "  \n\n \t ",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 0 {
					t.Errorf("got %d chunks, want 0", len(chunks))
				}
			},
		},
		{
			name:      "single short paragraph",
			maxTokens: 100,
			text:      "A single paragraph.",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("got %d chunks, want 1", len(chunks))
				}
				if chunks[0].Content != "A single paragraph." {
					t.Errorf("content = %q", chunks[0].Content)
				}
				if chunks[0].Index != 0 {
					t.Errorf("index = %d, want 0", chunks[0].Index)
				}
			},
		},
		{
			// Three 100-char paragraphs against a 150-char budget: each pair
			// overflows, so each paragraph lands in its own chunk.
			name:          "paragraphs split at the budget",
			maxTokens:     150 / DefaultCharsPerToken,
			overlapTokens: 0,
			text: strings.Repeat("a", 100) + "\n\n" +
				strings.Repeat("b", 100) + "\n\n" +
				strings.Repeat("c", 100),
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 3 {
					t.Fatalf("got %d chunks, want 3", len(chunks))
				}
				for i, prefix := range []string{"a", "b", "c"} {
					if !strings.HasPrefix(chunks[i].Content, prefix) {
						t.Errorf("chunk %d starts with %q, want %q", i, chunks[i].Content[:1], prefix)
					}
				}
			},
		},
		{
			name:          "two paragraphs fit one chunk",
			maxTokens:     100,
			overlapTokens: 0,
			text:          "First paragraph.\n\nSecond paragraph.",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("got %d chunks, want 1", len(chunks))
				}
				want := "First paragraph.\n\nSecond paragraph."
				if chunks[0].Content != want {
					t.Errorf("content = %q, want %q", chunks[0].Content, want)
				}
			},
		},
		{
			name:          "overlap seeds the next chunk",
			maxTokens:     25, // 100 chars
			overlapTokens: 5,  // 20 chars
			text:          strings.Repeat("a", 90) + "\n\n" + strings.Repeat("b", 90),
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 2 {
					t.Fatalf("got %d chunks, want 2", len(chunks))
				}
				// Second chunk starts with the 20-char tail of the first.
				if !strings.HasPrefix(chunks[1].Content, strings.Repeat("a", 20)) {
					t.Errorf("second chunk missing overlap prefix: %q", chunks[1].Content[:30])
				}
				if !strings.Contains(chunks[1].Content, strings.Repeat("b", 90)) {
					t.Error("second chunk missing its own paragraph")
				}
			},
		},
		{
			name:          "oversized paragraph falls back to sentences",
			maxTokens:     15, // 60 chars
			overlapTokens: 0,
			text: "This is the first sentence right here. " +
				"Here comes another full sentence. " +
				"And a third one to overflow the budget.",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) < 2 {
					t.Fatalf("got %d chunks, want at least 2", len(chunks))
				}
				var joined strings.Builder
				for _, c := range chunks {
					joined.WriteString(c.Content)
					joined.WriteString(" ")
				}
				for _, want := range []string{"first sentence", "another full sentence", "third one"} {
					if !strings.Contains(joined.String(), want) {
						t.Errorf("combined chunks missing %q", want)
					}
				}
			},
		},
		{
			name:          "unterminated trailing sentence is kept",
			maxTokens:     15,
			overlapTokens: 0,
			text:          "A proper sentence ends here. but this trailing fragment never terminates",
			check: func(t *testing.T, chunks []Chunk) {
				var joined strings.Builder
				for _, c := range chunks {
					joined.WriteString(c.Content)
				}
				if !strings.Contains(joined.String(), "trailing fragment never terminates") {
					t.Error("trailing fragment was dropped")
				}
			},
		},
		{
			name:      "paragraph with no sentence boundaries stays whole",
			maxTokens: 10, // 40 chars
			text:      strings.Repeat("x", 80),
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("got %d chunks, want 1", len(chunks))
				}
				if utf8.RuneCountInString(chunks[0].Content) != 80 {
					t.Errorf("content length = %d, want 80", utf8.RuneCountInString(chunks[0].Content))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunker := NewChunker(tt.maxTokens, tt.overlapTokens)
			chunks := chunker.Chunk(tt.text, meta)

			for i, chunk := range chunks {
				if chunk.Index != i {
					t.Errorf("chunk %d has index %d", i, chunk.Index)
				}
				if chunk.Content != strings.TrimSpace(chunk.Content) {
					t.Errorf("chunk %d content not trimmed: %q", i, chunk.Content)
				}
				if chunk.TokenCount != chunker.EstimateTokens(chunk.Content) {
					t.Errorf("chunk %d token count = %d, want %d", i, chunk.TokenCount, chunker.EstimateTokens(chunk.Content))
				}
				if chunk.Metadata != meta {
					t.Errorf("chunk %d metadata = %+v", i, chunk.Metadata)
				}
			}

			tt.check(t, chunks)
		})
	}
}

func TestChunker_Chunk_Deterministic(t *testing.T) {
	chunker := NewChunker(50, 10)
	meta := storage.ChunkMetadata{Filename: "a.txt", FileType: "text/plain"}
	text := "One sentence here. Another sentence there.\n\n" +
		strings.Repeat("filler text goes on. ", 20) + "\n\nA closing paragraph."

	first := chunker.Chunk(text, meta)
	second := chunker.Chunk(text, meta)

	if !reflect.DeepEqual(first, second) {
		t.Error("Chunk() is not deterministic for identical input")
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "terminated sentences",
			text: "First one. Second one! Third one?",
			want: []string{"First one. ", "Second one! ", "Third one?"},
		},
		{
			name: "trailing fragment preserved",
			text: "Done here. still going",
			want: []string{"Done here. ", "still going"},
		},
		{
			name: "no boundaries",
			text: "no punctuation at all",
			want: []string{"no punctuation at all"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitSentences(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
