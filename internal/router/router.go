package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chatllm-backend/internal/handlers"
	"chatllm-backend/internal/middleware"
	"chatllm-backend/internal/websocket"
)

// New wires the HTTP surface. wsHub may be nil, in which case the live
// event feed is not mounted.
func New(
	logger *zap.Logger,
	sessions middleware.SessionResolver,
	authHandler *handlers.AuthHandler,
	conversationHandler *handlers.ConversationHandler,
	wsHub *websocket.Hub,
	allowedOrigins []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Welcome to the Chat LLM API"}`))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Post("/register", authHandler.Register)
		r.Post("/token", authHandler.Token)

		// ──── Conversation Routes ────
		r.Route("/conversations", func(r chi.Router) {
			r.Use(middleware.Authenticate(sessions))
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)
			r.Put("/{id}/title", conversationHandler.UpdateTitle)
			r.Get("/{id}/messages", conversationHandler.Messages)
			r.Post("/{id}/converse", conversationHandler.Converse)
		})

		// ──── WebSocket ────
		if wsHub != nil {
			r.Get("/ws", wsHub.HandleWebSocket)
		}
	})

	return r
}
