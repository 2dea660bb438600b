package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"statslab-assistant/internal/contextutil"
	"statslab-assistant/internal/storage"
)

// ConversationsHandler serves the conversation CRUD endpoints.
type ConversationsHandler struct {
	conversations storage.ConversationStore
}

// NewConversationsHandler creates a new ConversationsHandler.
func NewConversationsHandler(conversations storage.ConversationStore) *ConversationsHandler {
	return &ConversationsHandler{conversations: conversations}
}

// ConversationResponse is the wire shape of a conversation.
type ConversationResponse struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"projectId,omitempty"`
	ProjectTitle string    `json:"projectTitle,omitempty"`
	Title        string    `json:"title"`
	LastMessage  string    `json:"lastMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MessageResponse is the wire shape of a single message.
type MessageResponse struct {
	ID           string          `json:"id"`
	Role         string          `json:"role"`
	Content      string          `json:"content"`
	Citations    json.RawMessage `json:"citations,omitempty"`
	InputTokens  int             `json:"inputTokens,omitempty"`
	OutputTokens int             `json:"outputTokens,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func toConversationResponse(conv *storage.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:           conv.ID,
		ProjectID:    conv.ProjectID,
		ProjectTitle: conv.ProjectTitle,
		Title:        conv.Title,
		LastMessage:  conv.LastMessage,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}
}

func toMessageResponse(msg *storage.Message) MessageResponse {
	return MessageResponse{
		ID:           msg.ID,
		Role:         msg.Role,
		Content:      msg.Content,
		Citations:    msg.Citations,
		InputTokens:  msg.InputTokens,
		OutputTokens: msg.OutputTokens,
		CreatedAt:    msg.CreatedAt,
	}
}

// CreateConversationRequest is the body for creating a conversation.
type CreateConversationRequest struct {
	ProjectID string `json:"projectId,omitempty"`
	Title     string `json:"title,omitempty"`
}

// Create handles POST /api/assistant/conversations.
func (h *ConversationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	identity, _ := contextutil.IdentityFromContext(ctx)

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conv, err := h.conversations.Create(ctx, identity.UserID, req.ProjectID, req.Title)
	if err != nil {
		logger.ErrorContext(ctx, "failed to create conversation", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	writeJSON(ctx, w, http.StatusCreated, map[string]any{
		"conversation": toConversationResponse(conv),
	})
}

// List handles GET /api/assistant/conversations.
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	identity, _ := contextutil.IdentityFromContext(ctx)

	conversations, err := h.conversations.ListByUser(ctx, identity.UserID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list conversations", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}

	responses := make([]ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		responses = append(responses, toConversationResponse(conv))
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{"conversations": responses})
}

// Get handles GET /api/assistant/conversations/{id}, returning the
// conversation with its messages in chronological order.
func (h *ConversationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	identity, _ := contextutil.IdentityFromContext(ctx)
	id := chi.URLParam(r, "id")

	conv, err := h.conversations.Get(ctx, id, identity.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(ctx, w, http.StatusNotFound, "Conversation not found")
			return
		}
		logger.ErrorContext(ctx, "failed to load conversation", "conversation_id", id, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}

	messages, err := h.conversations.ListMessages(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list messages", "conversation_id", id, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}

	responses := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		responses = append(responses, toMessageResponse(msg))
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"conversation": toConversationResponse(conv),
		"messages":     responses,
	})
}

// Delete handles DELETE /api/assistant/conversations/{id}.
func (h *ConversationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	identity, _ := contextutil.IdentityFromContext(ctx)
	id := chi.URLParam(r, "id")

	if err := h.conversations.Delete(ctx, id, identity.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(ctx, w, http.StatusNotFound, "Conversation not found")
			return
		}
		logger.ErrorContext(ctx, "failed to delete conversation", "conversation_id", id, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{"message": "Conversation deleted"})
}
