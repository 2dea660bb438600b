package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Configured(t *testing.T) {
	if NewClient("http://localhost", "", "model").Configured() {
		t.Error("Configured() = true without API key")
	}
	if !NewClient("http://localhost", "sk-test", "model").Configured() {
		t.Error("Configured() = false with API key")
	}
}

func TestClient_Complete(t *testing.T) {
	var captured ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}

		_ = json.NewEncoder(w).Encode(ChatResponse{
			Choices: []ChatChoice{{Message: Message{Role: "assistant", Content: "the answer [Source 1]"}}},
			Usage:   ChatUsage{PromptTokens: 321, CompletionTokens: 21},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", "test-model")

	completion, err := client.Complete(context.Background(), "system instructions", []Message{
		{Role: "user", Content: "earlier turn"},
		{Role: "assistant", Content: "earlier answer"},
		{Role: "user", Content: "the question"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if completion.Text != "the answer [Source 1]" {
		t.Errorf("Text = %q", completion.Text)
	}
	if completion.InputTokens != 321 || completion.OutputTokens != 21 {
		t.Errorf("usage = %d/%d", completion.InputTokens, completion.OutputTokens)
	}

	if len(captured.Messages) != 4 {
		t.Fatalf("sent %d messages, want 4", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[0].Content != "system instructions" {
		t.Errorf("first message = %+v, want system prompt", captured.Messages[0])
	}
	if captured.MaxTokens != maxCompletionTokens {
		t.Errorf("max_tokens = %d, want %d", captured.MaxTokens, maxCompletionTokens)
	}
	if captured.Model != "test-model" {
		t.Errorf("model = %q", captured.Model)
	}
}

func TestClient_Complete_NoSystemPrompt(t *testing.T) {
	var captured ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(ChatResponse{
			Choices: []ChatChoice{{Message: Message{Role: "assistant", Content: "ok"}}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", "test-model")

	if _, err := client.Complete(context.Background(), "", []Message{{Role: "user", Content: "hi"}}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want user turn only", captured.Messages)
	}
}

func TestClient_Complete_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", "test-model")

	if _, err := client.Complete(context.Background(), "", []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Error("Complete() = nil error on 429")
	}
}

func TestClient_Complete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", "test-model")

	if _, err := client.Complete(context.Background(), "", []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Error("Complete() = nil error with empty choices")
	}
}
