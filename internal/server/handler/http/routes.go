package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/prepchat/prepchat/internal/middleware"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the chat
// backend API.
//
// Routes:
//
//	POST /auth/signup → authHandler.Signup
//	POST /auth/login  → authHandler.Login
//	POST /chat        → chatHandler.Chat
//	GET  /health      → chatHandler.Health
//
// Middleware chain (applied in order):
//  1. AllowContentType("application/json") — rejects non-JSON bodies
//  2. WithRequestLogging(logger)           — logs incoming requests
func NewRouter(
	authHandler *AuthHandler,
	chatHandler *ChatHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Only allow requests with Content-Type: application/json. Requests
	// without a body (the health check) pass through unchecked.
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Log each request and its metadata.
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
	})

	r.Post("/chat", chatHandler.Chat)
	r.Get("/health", chatHandler.Health)

	return r
}
