package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_conversation_store.go -package=mocks statslab-assistant/internal/storage ConversationStore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// ConversationStore defines persistence for assistant conversations and
// their messages.
type ConversationStore interface {
	// Create creates a conversation for a user, optionally scoped to a project.
	Create(ctx context.Context, userID, projectID, title string) (*Conversation, error)
	// ListByUser returns a user's conversations, most recently updated first,
	// each with its project title and last message populated.
	ListByUser(ctx context.Context, userID string) ([]*Conversation, error)
	// Get fetches a conversation owned by the user.
	// Returns nil and ErrNotFound if not found or owned by someone else.
	Get(ctx context.Context, id, userID string) (*Conversation, error)
	// Delete removes a conversation owned by the user and its messages.
	// Returns ErrNotFound if not found or owned by someone else.
	Delete(ctx context.Context, id, userID string) error
	// AppendMessage stores a message; the ID is assigned if unset.
	AppendMessage(ctx context.Context, msg *Message) error
	// ListMessages returns a conversation's messages in chronological order.
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)
	// Touch bumps updated_at and, when title is non-empty, retitles the
	// conversation.
	Touch(ctx context.Context, id, title string) error
}

// ConversationRepo provides conversation operations backed by SQLite.
// It implements the ConversationStore interface.
type ConversationRepo struct {
	db *sql.DB
}

// NewConversationRepo creates a new ConversationRepo.
func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// Create creates a conversation for a user, optionally scoped to a project.
func (r *ConversationRepo) Create(ctx context.Context, userID, projectID, title string) (*Conversation, error) {
	if title == "" {
		title = "New Conversation"
	}
	id := uuid.New().String()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ai_conversations (id, user_id, project_id, title) VALUES (?, ?, ?, ?)`,
		id, userID, nullable(projectID), title,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return r.Get(ctx, id, userID)
}

// ListByUser returns a user's conversations, most recently updated first.
func (r *ConversationRepo) ListByUser(ctx context.Context, userID string) ([]*Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.user_id, c.project_id, p.title, c.title,
		        (SELECT content FROM ai_messages
		         WHERE conversation_id = c.id ORDER BY created_at DESC, rowid DESC LIMIT 1),
		        c.created_at, c.updated_at
		 FROM ai_conversations c
		 LEFT JOIN projects p ON c.project_id = p.id
		 WHERE c.user_id = ?
		 ORDER BY c.updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var conversations []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return conversations, nil
}

// Get fetches a conversation owned by the user.
// Returns nil and ErrNotFound if not found or owned by someone else.
func (r *ConversationRepo) Get(ctx context.Context, id, userID string) (*Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.user_id, c.project_id, p.title, c.title, NULL,
		        c.created_at, c.updated_at
		 FROM ai_conversations c
		 LEFT JOIN projects p ON c.project_id = p.id
		 WHERE c.id = ? AND c.user_id = ?`,
		id, userID,
	)

	conv, err := scanConversation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// Delete removes a conversation owned by the user and its messages.
func (r *ConversationRepo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM ai_conversations WHERE id = ? AND user_id = ?",
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage stores a message; the ID is assigned if unset.
func (r *ConversationRepo) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	var citations any
	if len(msg.Citations) > 0 {
		citations = string(msg.Citations)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ai_messages (id, conversation_id, role, content, citations, input_tokens, output_tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, citations,
		msg.InputTokens, msg.OutputTokens,
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in chronological order.
func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, citations, input_tokens, output_tokens, created_at
		 FROM ai_messages
		 WHERE conversation_id = ?
		 ORDER BY created_at ASC, rowid ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var messages []*Message
	for rows.Next() {
		var (
			msg       Message
			citations sql.NullString
		)
		err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&citations, &msg.InputTokens, &msg.OutputTokens, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if citations.Valid {
			msg.Citations = []byte(citations.String)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return messages, nil
}

// Touch bumps updated_at and, when title is non-empty, retitles the conversation.
func (r *ConversationRepo) Touch(ctx context.Context, id, title string) error {
	var err error
	if title != "" {
		_, err = r.db.ExecContext(ctx,
			"UPDATE ai_conversations SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			title, id,
		)
	} else {
		_, err = r.db.ExecContext(ctx,
			"UPDATE ai_conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			id,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

func scanConversation(scan func(dest ...any) error) (*Conversation, error) {
	var (
		conv         Conversation
		projectID    sql.NullString
		projectTitle sql.NullString
		lastMessage  sql.NullString
	)
	err := scan(&conv.ID, &conv.UserID, &projectID, &projectTitle, &conv.Title,
		&lastMessage, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	conv.ProjectID = projectID.String
	conv.ProjectTitle = projectTitle.String
	conv.LastMessage = lastMessage.String
	return &conv, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
