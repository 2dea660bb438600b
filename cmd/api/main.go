package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"statslab-assistant/internal/config"
	"statslab-assistant/internal/contextutil"
	"statslab-assistant/internal/extract"
	"statslab-assistant/internal/http"
	"statslab-assistant/internal/indexer"
	"statslab-assistant/internal/llm"
	"statslab-assistant/internal/rag"
	"statslab-assistant/internal/storage"
	"statslab-assistant/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	fileRepo := storage.NewFileRepo(db)
	chunkRepo := storage.NewChunkRepo(db)
	conversationRepo := storage.NewConversationRepo(db)

	ctx := contextutil.WithLogger(context.Background(), logger)

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	// Ensure collection exists with correct vector size
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.VectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.VectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.VectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.VectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.VectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.VectorSize)

	// Create indexing pipeline and its background worker
	chunker := indexer.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	pipeline := indexer.NewPipeline(
		fileRepo,
		chunkRepo,
		extract.NewLocalExtractor(),
		embedder,
		vectorStore,
		cfg.QdrantCollection,
		chunker,
	)
	worker := indexer.NewWorker(pipeline)
	worker.Start(ctx)

	// Create LLM client and RAG engine
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
	retriever := rag.NewRetriever(chunkRepo, cfg.TopK)
	ragEngine := rag.NewEngine(retriever, llmClient)
	slog.Info("RAG engine initialized", "top_k", cfg.TopK, "llm_configured", cfg.LLMConfigured())

	// Create router with dependencies
	deps := &http.Deps{
		Logger:        logger,
		DB:            db,
		RAGEngine:     ragEngine,
		Conversations: conversationRepo,
		Files:         fileRepo,
		Worker:        worker,
		LLMConfigured: cfg.LLMConfigured(),
	}
	router := http.NewRouter(deps)

	// Queue any files still waiting for a first indexing pass
	go func() {
		if err := worker.EnqueuePending(ctx); err != nil {
			slog.Error("Failed to queue pending files", "error", err)
		}
	}()

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
