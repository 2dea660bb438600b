package indexer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"statslab-assistant/internal/storage"
)

// DefaultCharsPerToken is the character-per-token ratio used to convert the
// token budget into a character budget. A heuristic (English averages ~4
// chars/token), deliberately not a real tokenizer: the size bound only needs
// to be consistent, not exact.
const DefaultCharsPerToken = 4

var (
	paragraphSplitter = regexp.MustCompile(`\n\s*\n`)
	sentencePattern   = regexp.MustCompile(`[^.!?]+[.!?]+\s*`)
)

// Chunker splits raw text into overlapping, size-bounded segments.
// Identical input and configuration always produce an identical sequence.
type Chunker struct {
	maxTokens     int
	overlapTokens int
	charsPerToken int
}

// NewChunker creates a Chunker with the given token budget and overlap.
func NewChunker(maxTokens, overlapTokens int) *Chunker {
	return &Chunker{
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
		charsPerToken: DefaultCharsPerToken,
	}
}

// EstimateTokens estimates the token count of text from its rune length.
func (c *Chunker) EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + c.charsPerToken - 1) / c.charsPerToken
}

// Chunk splits text into segments of at most maxTokens (converted to a
// character budget), preferring paragraph boundaries and falling back to
// sentence boundaries for oversized paragraphs. Each segment after the first
// starts with the trailing overlap window of its predecessor. Empty or
// whitespace-only input yields no chunks.
//
// A paragraph with no sentence boundaries at all is kept whole even when it
// exceeds the budget; content is never truncated.
func (c *Chunker) Chunk(text string, meta storage.ChunkMetadata) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	b := &builder{
		chunker:      c,
		maxChars:     c.maxTokens * c.charsPerToken,
		overlapChars: c.overlapTokens * c.charsPerToken,
		meta:         meta,
	}

	for _, paragraph := range paragraphSplitter.Split(text, -1) {
		trimmed := strings.TrimSpace(paragraph)
		if trimmed == "" {
			continue
		}

		switch {
		case utf8.RuneCountInString(trimmed) > b.maxChars:
			// Oversized paragraph: close whatever is pending, then apply
			// the same accumulate/close logic at sentence granularity. The
			// trailing sentence buffer stays open for following paragraphs.
			b.flush()
			b.current = nil
			for _, sentence := range splitSentences(trimmed) {
				if len(b.current) > 0 && len(b.current)+utf8.RuneCountInString(sentence) > b.maxChars {
					b.closeAndSeed(sentence, " ")
				} else {
					b.append(sentence, " ")
				}
			}
		case len(b.current) > 0 && len(b.current)+utf8.RuneCountInString(trimmed)+1 > b.maxChars:
			b.closeAndSeed(trimmed, "\n\n")
		default:
			b.append(trimmed, "\n\n")
		}
	}

	b.flush()
	return b.chunks
}

// builder accumulates paragraphs (or sentences) into the current buffer and
// emits finished chunks. The buffer is held as runes so the budget and the
// overlap window are measured the same way.
type builder struct {
	chunker      *Chunker
	maxChars     int
	overlapChars int
	meta         storage.ChunkMetadata
	current      []rune
	chunks       []Chunk
}

// flush emits the current buffer as a chunk if it has any content.
// It does not reset the buffer; callers decide what the next buffer is.
func (b *builder) flush() {
	content := strings.TrimSpace(string(b.current))
	if content == "" {
		return
	}
	b.chunks = append(b.chunks, Chunk{
		Content:    content,
		Index:      len(b.chunks),
		TokenCount: b.chunker.EstimateTokens(content),
		Metadata:   b.meta,
	})
}

// closeAndSeed emits the current buffer, then starts a new one seeded with
// the trailing overlap window followed by next. A buffer shorter than the
// overlap window starts fresh with only next.
func (b *builder) closeAndSeed(next, sep string) {
	b.flush()
	if b.overlapChars > 0 && len(b.current) > b.overlapChars {
		tail := b.current[len(b.current)-b.overlapChars:]
		seeded := make([]rune, 0, len(tail)+len(sep)+len(next))
		seeded = append(seeded, tail...)
		seeded = append(seeded, []rune(sep)...)
		seeded = append(seeded, []rune(next)...)
		b.current = seeded
	} else {
		b.current = []rune(next)
	}
}

// append adds s to the current buffer, separated by sep when the buffer is
// non-empty.
func (b *builder) append(s, sep string) {
	if len(b.current) > 0 {
		b.current = append(b.current, []rune(sep)...)
	}
	b.current = append(b.current, []rune(s)...)
}

// splitSentences splits a paragraph on terminal punctuation followed by
// whitespace. Trailing text without a terminator is kept as a final unit so
// no content is dropped; a paragraph with no boundaries comes back whole.
func splitSentences(s string) []string {
	matches := sentencePattern.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return []string{s}
	}

	var sentences []string
	end := 0
	for _, m := range matches {
		sentences = append(sentences, s[m[0]:m[1]])
		end = m[1]
	}
	if end < len(s) {
		sentences = append(sentences, s[end:])
	}
	return sentences
}
