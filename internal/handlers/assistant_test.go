package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"statslab-assistant/internal/contextutil"
	"statslab-assistant/internal/rag"
	rag_mocks "statslab-assistant/internal/rag/mocks"
	"statslab-assistant/internal/storage"
	storage_mocks "statslab-assistant/internal/storage/mocks"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// newRequest builds a request carrying an identity and a chi route param.
func newRequest(t *testing.T, method, target, body string, identity contextutil.Identity, params map[string]string) *http.Request {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)

	ctx := contextutil.WithIdentity(req.Context(), identity)
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

func member() contextutil.Identity {
	return contextutil.Identity{UserID: "user-1", Role: "member"}
}

func TestAssistantHandler_Status(t *testing.T) {
	db := testDB(t)

	tests := []struct {
		name          string
		llmConfigured bool
		wantAvailable bool
	}{
		{name: "configured", llmConfigured: true, wantAvailable: true},
		{name: "not configured", llmConfigured: false, wantAvailable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			handler := NewAssistantHandler(
				rag_mocks.NewMockEngine(ctrl),
				storage_mocks.NewMockConversationStore(ctrl),
				db,
				tt.llmConfigured,
			)

			rec := httptest.NewRecorder()
			handler.Status(rec, newRequest(t, http.MethodGet, "/api/assistant/status", "", member(), nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var resp StatusResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Available != tt.wantAvailable {
				t.Errorf("available = %v, want %v", resp.Available, tt.wantAvailable)
			}
			if !resp.Database {
				t.Error("database = false, want true")
			}
		})
	}
}

func TestAssistantHandler_PostMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conversations := storage_mocks.NewMockConversationStore(ctrl)
	engine := rag_mocks.NewMockEngine(ctrl)

	conv := &storage.Conversation{ID: "conv-1", UserID: "user-1", ProjectID: "p1", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	conversations.EXPECT().Get(gomock.Any(), "conv-1", "user-1").Return(conv, nil)
	conversations.EXPECT().ListMessages(gomock.Any(), "conv-1").Return([]*storage.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}, nil)

	var stored []*storage.Message
	conversations.EXPECT().AppendMessage(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg *storage.Message) error {
			stored = append(stored, msg)
			return nil
		}).Times(2)

	engine.EXPECT().Answer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req rag.AnswerRequest) (*rag.AnswerResult, error) {
			if req.Question != "what changed" {
				t.Errorf("question = %q", req.Question)
			}
			if req.ProjectID != "p1" {
				t.Errorf("project = %q, want conversation scope p1", req.ProjectID)
			}
			if len(req.History) != 2 {
				t.Errorf("history length = %d, want 2", len(req.History))
			}
			return &rag.AnswerResult{
				Content:   "this changed [Source 1]",
				Citations: []rag.Citation{{SourceIndex: 1, FileID: "f1"}},
				Usage:     rag.Usage{InputTokens: 50, OutputTokens: 9},
			}, nil
		})

	// Existing history means no retitle.
	conversations.EXPECT().Touch(gomock.Any(), "conv-1", "").Return(nil)

	handler := NewAssistantHandler(engine, conversations, testDB(t), true)

	rec := httptest.NewRecorder()
	req := newRequest(t, http.MethodPost, "/api/assistant/conversations/conv-1/messages",
		`{"message":" what changed "}`, member(), map[string]string{"id": "conv-1"})
	handler.PostMessage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if len(stored) != 2 {
		t.Fatalf("stored %d messages, want 2", len(stored))
	}
	if stored[0].Role != "user" || stored[0].Content != "what changed" {
		t.Errorf("user message = %+v", stored[0])
	}
	if stored[1].Role != "assistant" || stored[1].InputTokens != 50 {
		t.Errorf("assistant message = %+v", stored[1])
	}

	var resp struct {
		Message   MessageResponse `json:"message"`
		Citations []rag.Citation  `json:"citations"`
		Usage     rag.Usage       `json:"usage"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message.Content != "this changed [Source 1]" {
		t.Errorf("message content = %q", resp.Message.Content)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].FileID != "f1" {
		t.Errorf("citations = %+v", resp.Citations)
	}
}

func TestAssistantHandler_PostMessage_FirstExchangeSetsTitle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conversations := storage_mocks.NewMockConversationStore(ctrl)
	engine := rag_mocks.NewMockEngine(ctrl)

	conv := &storage.Conversation{ID: "conv-1", UserID: "user-1"}
	conversations.EXPECT().Get(gomock.Any(), "conv-1", "user-1").Return(conv, nil)
	conversations.EXPECT().ListMessages(gomock.Any(), "conv-1").Return(nil, nil)
	conversations.EXPECT().AppendMessage(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	engine.EXPECT().Answer(gomock.Any(), gomock.Any()).Return(&rag.AnswerResult{Content: "answer"}, nil)
	conversations.EXPECT().Touch(gomock.Any(), "conv-1", "first question").Return(nil)

	handler := NewAssistantHandler(engine, conversations, testDB(t), true)

	rec := httptest.NewRecorder()
	req := newRequest(t, http.MethodPost, "/api/assistant/conversations/conv-1/messages",
		`{"message":"first question"}`, member(), map[string]string{"id": "conv-1"})
	handler.PostMessage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAssistantHandler_PostMessage_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(conversations *storage_mocks.MockConversationStore, engine *rag_mocks.MockEngine)
		wantStatus int
	}{
		{
			name:       "blank message",
			body:       `{"message":"   "}`,
			setup:      func(*storage_mocks.MockConversationStore, *rag_mocks.MockEngine) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "conversation not found",
			body: `{"message":"hello"}`,
			setup: func(conversations *storage_mocks.MockConversationStore, _ *rag_mocks.MockEngine) {
				conversations.EXPECT().Get(gomock.Any(), "conv-1", "user-1").Return(nil, storage.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "assistant not configured",
			body: `{"message":"hello"}`,
			setup: func(conversations *storage_mocks.MockConversationStore, engine *rag_mocks.MockEngine) {
				conversations.EXPECT().Get(gomock.Any(), "conv-1", "user-1").Return(&storage.Conversation{ID: "conv-1"}, nil)
				conversations.EXPECT().ListMessages(gomock.Any(), "conv-1").Return(nil, nil)
				conversations.EXPECT().AppendMessage(gomock.Any(), gomock.Any()).Return(nil)
				engine.EXPECT().Answer(gomock.Any(), gomock.Any()).Return(nil, rag.ErrNotConfigured)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			conversations := storage_mocks.NewMockConversationStore(ctrl)
			engine := rag_mocks.NewMockEngine(ctrl)
			tt.setup(conversations, engine)

			handler := NewAssistantHandler(engine, conversations, testDB(t), true)

			rec := httptest.NewRecorder()
			req := newRequest(t, http.MethodPost, "/api/assistant/conversations/conv-1/messages",
				tt.body, member(), map[string]string{"id": "conv-1"})
			handler.PostMessage(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestDeriveTitle(t *testing.T) {
	short := "what is the sample size"
	if got := deriveTitle(short); got != short {
		t.Errorf("deriveTitle(short) = %q", got)
	}

	long := strings.Repeat("q", 150)
	got := deriveTitle(long)
	if len([]rune(got)) != titleLength+3 {
		t.Errorf("deriveTitle(long) length = %d, want %d", len([]rune(got)), titleLength+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("deriveTitle(long) missing ellipsis")
	}
}
