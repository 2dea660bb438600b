package config

import (
	"log/slog"
	"testing"
)

// setBaseEnv points the data directory at a temp dir so Load never touches
// the working tree.
func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_PATH", t.TempDir()+"/test.db")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIPort != "9000" {
		t.Errorf("APIPort = %q, want 9000", cfg.APIPort)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.VectorSize != 384 {
		t.Errorf("VectorSize = %d, want 384", cfg.VectorSize)
	}
	if cfg.ChunkSize != 500 || cfg.ChunkOverlap != 50 || cfg.TopK != 8 {
		t.Errorf("chunking config = %d/%d/%d, want 500/50/8", cfg.ChunkSize, cfg.ChunkOverlap, cfg.TopK)
	}
	if cfg.QdrantCollection != "document_chunks" {
		t.Errorf("QdrantCollection = %q", cfg.QdrantCollection)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("API_PORT", "8088")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("VECTOR_SIZE", "768")
	t.Setenv("RAG_CHUNK_SIZE", "256")
	t.Setenv("RAG_CHUNK_OVERLAP", "32")
	t.Setenv("RAG_TOP_K", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIPort != "8088" {
		t.Errorf("APIPort = %q", cfg.APIPort)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.VectorSize != 768 {
		t.Errorf("VectorSize = %d", cfg.VectorSize)
	}
	if cfg.ChunkSize != 256 || cfg.ChunkOverlap != 32 || cfg.TopK != 4 {
		t.Errorf("chunking config = %d/%d/%d", cfg.ChunkSize, cfg.ChunkOverlap, cfg.TopK)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad log level", key: "LOG_LEVEL", value: "verbose"},
		{name: "non-numeric vector size", key: "VECTOR_SIZE", value: "huge"},
		{name: "zero vector size", key: "VECTOR_SIZE", value: "0"},
		{name: "zero chunk size", key: "RAG_CHUNK_SIZE", value: "0"},
		{name: "negative overlap", key: "RAG_CHUNK_OVERLAP", value: "-1"},
		{name: "overlap at chunk size", key: "RAG_CHUNK_OVERLAP", value: "500"},
		{name: "zero top k", key: "RAG_TOP_K", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() = nil error with %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestConfig_LLMConfigured(t *testing.T) {
	cfg := &Config{}
	if cfg.LLMConfigured() {
		t.Error("LLMConfigured() = true without a key")
	}
	cfg.LLMAPIKey = "sk-test"
	if !cfg.LLMConfigured() {
		t.Error("LLMConfigured() = false with a key")
	}
}
