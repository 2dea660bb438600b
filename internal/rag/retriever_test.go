package rag

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/mock/gomock"

	"statslab-assistant/internal/storage"
	storage_mocks "statslab-assistant/internal/storage/mocks"
)

func TestSearchTerms(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     []string
	}{
		{
			name:     "plain words",
			question: "protein folding results",
			want:     []string{"protein", "folding", "results"},
		},
		{
			name:     "punctuation stripped",
			question: "What's the p-value, exactly?",
			want:     []string{"What", "the", "value", "exactly"},
		},
		{
			name:     "single characters dropped",
			question: "a b experiment c",
			want:     []string{"experiment"},
		},
		{
			name:     "only punctuation yields nothing",
			question: "?! ... ---",
			want:     nil,
		},
		{
			name:     "empty question",
			question: "",
			want:     nil,
		},
		{
			name:     "numbers survive",
			question: "trial 42 cohort",
			want:     []string{"trial", "42", "cohort"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchTerms(tt.question)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("searchTerms(%q) = %v, want %v", tt.question, got, tt.want)
			}
		})
	}
}

func TestRetriever_Search(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chunks := storage_mocks.NewMockChunkStore(ctrl)
	retriever := NewRetriever(chunks, 8)

	req := AnswerRequest{
		Question:  "protein folding",
		UserID:    "user-1",
		Role:      "member",
		ProjectID: "project-1",
	}

	want := []*storage.ChunkResult{{ID: "c1", Content: "folding data", Rank: 2.5}}
	chunks.EXPECT().Search(gomock.Any(), storage.SearchParams{
		Terms:     []string{"protein", "folding"},
		Question:  "protein folding",
		UserID:    "user-1",
		Role:      "member",
		ProjectID: "project-1",
		Limit:     8,
	}).Return(want, nil)

	got, err := retriever.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search() = %v, want %v", got, want)
	}
}

func TestRetriever_Search_FallbackWithoutTerms(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chunks := storage_mocks.NewMockChunkStore(ctrl)
	retriever := NewRetriever(chunks, 8)

	chunks.EXPECT().Search(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, params storage.SearchParams) ([]*storage.ChunkResult, error) {
			if len(params.Terms) != 0 {
				t.Errorf("Terms = %v, want empty for fallback", params.Terms)
			}
			if params.Question != "??" {
				t.Errorf("Question = %q", params.Question)
			}
			return nil, nil
		})

	_, err := retriever.Search(context.Background(), AnswerRequest{Question: "??", UserID: "u", Role: "member"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
}

func TestRetriever_Search_PropagatesError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chunks := storage_mocks.NewMockChunkStore(ctrl)
	retriever := NewRetriever(chunks, 8)

	chunks.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, errors.New("db closed"))

	if _, err := retriever.Search(context.Background(), AnswerRequest{Question: "anything here"}); err == nil {
		t.Error("Search() = nil error, want error")
	}
}
