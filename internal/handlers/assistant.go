package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"statslab-assistant/internal/contextutil"
	"statslab-assistant/internal/llm"
	"statslab-assistant/internal/rag"
	"statslab-assistant/internal/storage"
)

// titleLength caps the auto-generated conversation title taken from the
// first user message.
const titleLength = 100

// AssistantHandler serves the status endpoint and the question/answer flow.
type AssistantHandler struct {
	engine        rag.Engine
	conversations storage.ConversationStore
	db            *sql.DB
	llmConfigured bool
}

// NewAssistantHandler creates a new AssistantHandler.
func NewAssistantHandler(engine rag.Engine, conversations storage.ConversationStore, db *sql.DB, llmConfigured bool) *AssistantHandler {
	return &AssistantHandler{
		engine:        engine,
		conversations: conversations,
		db:            db,
		llmConfigured: llmConfigured,
	}
}

// StatusResponse reports assistant availability.
type StatusResponse struct {
	Available bool   `json:"available"`
	LLM       bool   `json:"llm"`
	Database  bool   `json:"database"`
	Message   string `json:"message"`
}

// Status handles GET /api/assistant/status.
func (h *AssistantHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbOK := h.db.PingContext(ctx) == nil

	message := "Assistant is ready"
	switch {
	case !h.llmConfigured:
		message = "LLM backend not configured"
	case !dbOK:
		message = "Database not available"
	}

	writeJSON(ctx, w, http.StatusOK, StatusResponse{
		Available: h.llmConfigured && dbOK,
		LLM:       h.llmConfigured,
		Database:  dbOK,
		Message:   message,
	})
}

// PostMessageRequest is the body for sending a message to a conversation.
type PostMessageRequest struct {
	Message string `json:"message"`
}

// PostMessage handles POST /api/assistant/conversations/{id}/messages: it
// persists the user turn, runs retrieval-augmented answering against the
// conversation's project scope, and persists the assistant turn with its
// citations and token usage.
func (h *AssistantHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	identity, _ := contextutil.IdentityFromContext(ctx)
	conversationID := chi.URLParam(r, "id")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	question := strings.TrimSpace(req.Message)
	if question == "" {
		writeError(ctx, w, http.StatusBadRequest, "Message is required")
		return
	}

	conv, err := h.conversations.Get(ctx, conversationID, identity.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(ctx, w, http.StatusNotFound, "Conversation not found")
			return
		}
		logger.ErrorContext(ctx, "failed to load conversation", "conversation_id", conversationID, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}

	// History is read before the new user turn is stored; the question itself
	// travels separately to the engine.
	prior, err := h.conversations.ListMessages(ctx, conversationID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list messages", "conversation_id", conversationID, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to load conversation history")
		return
	}

	userMsg := &storage.Message{
		ConversationID: conversationID,
		Role:           "user",
		Content:        question,
	}
	if err := h.conversations.AppendMessage(ctx, userMsg); err != nil {
		logger.ErrorContext(ctx, "failed to store user message", "conversation_id", conversationID, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to store message")
		return
	}

	history := make([]llm.Message, 0, len(prior))
	for _, msg := range prior {
		history = append(history, llm.Message{Role: msg.Role, Content: msg.Content})
	}

	result, err := h.engine.Answer(ctx, rag.AnswerRequest{
		Question:  question,
		History:   history,
		UserID:    identity.UserID,
		Role:      identity.Role,
		ProjectID: conv.ProjectID,
	})
	if err != nil {
		if errors.Is(err, rag.ErrNotConfigured) {
			writeError(ctx, w, http.StatusServiceUnavailable, "Assistant is not configured")
			return
		}
		logger.ErrorContext(ctx, "answer failed", "conversation_id", conversationID, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to answer message")
		return
	}

	citations, err := json.Marshal(result.Citations)
	if err != nil {
		logger.ErrorContext(ctx, "failed to encode citations", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to store answer")
		return
	}

	assistantMsg := &storage.Message{
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        result.Content,
		Citations:      citations,
		InputTokens:    result.Usage.InputTokens,
		OutputTokens:   result.Usage.OutputTokens,
	}
	if err := h.conversations.AppendMessage(ctx, assistantMsg); err != nil {
		logger.ErrorContext(ctx, "failed to store assistant message", "conversation_id", conversationID, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to store answer")
		return
	}

	// The first exchange names the conversation after the question.
	title := ""
	if len(prior) == 0 {
		title = deriveTitle(question)
	}
	if err := h.conversations.Touch(ctx, conversationID, title); err != nil {
		logger.WarnContext(ctx, "failed to touch conversation", "conversation_id", conversationID, "error", err)
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"message":   toMessageResponse(assistantMsg),
		"citations": result.Citations,
		"usage":     result.Usage,
	})
}

// deriveTitle truncates the first message to the title budget.
func deriveTitle(message string) string {
	runes := []rune(message)
	if utf8.RuneCountInString(message) <= titleLength {
		return message
	}
	return string(runes[:titleLength]) + "..."
}
