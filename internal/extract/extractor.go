// Package extract turns stored file artifacts into plain text for chunking.
//
// Binary document formats (PDF, DOCX, ...) are not text-bearing from this
// service's point of view; extraction for those happens upstream. A non-text
// media type is reported via the ok return, never as an error.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Extractor converts a stored artifact into plain text.
type Extractor interface {
	// ExtractText reads the artifact at storagePath and returns its text.
	// ok is false when the media type is not text-bearing (image, audio,
	// video, binary document); that is not an error.
	ExtractText(ctx context.Context, storagePath, mediaType string) (text string, ok bool, err error)
}

// LocalExtractor reads artifacts from the local filesystem.
// It implements the Extractor interface.
type LocalExtractor struct {
	markdown goldmark.Markdown
}

// NewLocalExtractor creates a new LocalExtractor.
func NewLocalExtractor() *LocalExtractor {
	return &LocalExtractor{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// ExtractText reads the artifact at storagePath and returns its text.
func (e *LocalExtractor) ExtractText(ctx context.Context, storagePath, mediaType string) (string, bool, error) {
	if !isTextBearing(mediaType) {
		return "", false, nil
	}

	content, err := os.ReadFile(storagePath)
	if err != nil {
		return "", false, fmt.Errorf("failed to read file %s: %w", storagePath, err)
	}

	if isMarkdown(mediaType) {
		return e.markdownToText(content), true, nil
	}
	return string(content), true, nil
}

// markdownToText renders markdown to plain text by walking the AST and
// collecting text nodes. Table cells are joined with pipes so rows stay on
// one line; block boundaries become newlines.
func (e *LocalExtractor) markdownToText(content []byte) string {
	doc := e.markdown.Parser().Parse(text.NewReader(content))

	var builder strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			builder.Write(node.Segment.Value(content))
			if node.HardLineBreak() || node.SoftLineBreak() {
				builder.WriteByte('\n')
			}
		case *ast.String:
			builder.Write(node.Value)
		case *ast.CodeBlock:
			writeLines(&builder, node, content)
		case *ast.FencedCodeBlock:
			writeLines(&builder, node, content)
		case *ast.Heading, *ast.Paragraph, *ast.ListItem, *ast.Blockquote:
			ensureBlankLine(&builder)
		default:
			kind := n.Kind().String()
			if strings.Contains(kind, "TableRow") || strings.Contains(kind, "TableHeader") {
				ensureNewline(&builder)
			} else if strings.Contains(kind, "TableCell") {
				if last := builder.String(); last != "" && !strings.HasSuffix(last, "\n") {
					builder.WriteString(" | ")
				}
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(builder.String())
}

func writeLines(builder *strings.Builder, n ast.Node, content []byte) {
	ensureBlankLine(builder)
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		builder.Write(line.Value(content))
	}
}

func ensureBlankLine(builder *strings.Builder) {
	s := builder.String()
	if s == "" {
		return
	}
	if !strings.HasSuffix(s, "\n\n") {
		if strings.HasSuffix(s, "\n") {
			builder.WriteByte('\n')
		} else {
			builder.WriteString("\n\n")
		}
	}
}

func ensureNewline(builder *strings.Builder) {
	if s := builder.String(); s != "" && !strings.HasSuffix(s, "\n") {
		builder.WriteByte('\n')
	}
}

// isTextBearing reports whether the declared media type carries extractable
// text. Binary document formats are handled upstream and land here only as
// pre-extracted text, so they count as non-text.
func isTextBearing(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch {
	case strings.HasPrefix(mt, "image/"),
		strings.HasPrefix(mt, "audio/"),
		strings.HasPrefix(mt, "video/"):
		return false
	case strings.HasPrefix(mt, "text/"):
		return true
	}

	switch mt {
	case "application/json", "application/xml", "application/x-yaml",
		"application/yaml", "application/javascript", "application/csv":
		return true
	}
	return false
}

func isMarkdown(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	return strings.HasPrefix(mt, "text/markdown") || strings.HasPrefix(mt, "text/x-markdown")
}
