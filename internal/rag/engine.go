package rag

import (
	"context"
	"fmt"

	"statslab-assistant/internal/contextutil"
	"statslab-assistant/internal/llm"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks statslab-assistant/internal/rag Engine,Completer

// historyWindow is how many trailing history messages travel with a question.
const historyWindow = 10

// Completer is the LLM surface the engine needs.
type Completer interface {
	Configured() bool
	Complete(ctx context.Context, systemPrompt string, messages []llm.Message) (*llm.Completion, error)
}

// Engine answers questions over the user's accessible documents.
type Engine interface {
	Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error)
}

// engine retrieves relevant chunks, composes a grounded prompt, and maps the
// model's [Source N] references back to citations.
type engine struct {
	retriever *Retriever
	completer Completer
}

// NewEngine creates the answer engine.
func NewEngine(retriever *Retriever, completer Completer) Engine {
	return &engine{retriever: retriever, completer: completer}
}

// Answer runs one retrieval-augmented exchange. Returns ErrNotConfigured when
// no LLM backend is configured; retrieval is not attempted in that case.
func (e *engine) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if !e.completer.Configured() {
		return nil, ErrNotConfigured
	}

	chunks, err := e.retriever.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: req.Question})

	completion, err := e.completer.Complete(ctx, buildSystemPrompt(chunks), messages)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	citations := extractCitations(completion.Text, chunks)
	logger.InfoContext(ctx, "answer composed",
		"chunks", len(chunks), "citations", len(citations),
		"input_tokens", completion.InputTokens, "output_tokens", completion.OutputTokens)

	return &AnswerResult{
		Content:   completion.Text,
		Citations: citations,
		Usage: Usage{
			InputTokens:  completion.InputTokens,
			OutputTokens: completion.OutputTokens,
		},
	}, nil
}
