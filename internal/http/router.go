package http

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"statslab-assistant/internal/handlers"
	"statslab-assistant/internal/indexer"
	"statslab-assistant/internal/rag"
	"statslab-assistant/internal/storage"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Logger        *slog.Logger
	DB            *sql.DB
	RAGEngine     rag.Engine
	Conversations storage.ConversationStore
	Files         storage.FileStore
	Worker        *indexer.Worker
	LLMConfigured bool
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(CORS)
	r.Use(LoggerMiddleware(deps.Logger))

	healthHandler := handlers.NewHealthHandler(deps.DB)
	assistantHandler := handlers.NewAssistantHandler(deps.RAGEngine, deps.Conversations, deps.DB, deps.LLMConfigured)
	conversationsHandler := handlers.NewConversationsHandler(deps.Conversations)
	indexHandler := handlers.NewIndexHandler(deps.Files, deps.Worker)

	r.Method(http.MethodGet, "/healthz", healthHandler)

	r.Route("/api/assistant", func(r chi.Router) {
		r.Use(Identity)

		r.Get("/status", assistantHandler.Status)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationsHandler.Create)
			r.Get("/", conversationsHandler.List)
			r.Get("/{id}", conversationsHandler.Get)
			r.Delete("/{id}", conversationsHandler.Delete)
			r.Post("/{id}/messages", assistantHandler.PostMessage)
		})

		r.Get("/files/{fileID}/status", indexHandler.FileStatus)

		r.Route("/reindex", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/{fileID}", indexHandler.Reindex)
		})
	})

	return r
}
