// Package main initializes and starts the chat backend server, setting up
// configuration, logging, the credential database, the memory graph store,
// the LLM gateway, services, and HTTP handlers.
package main

import (
	"cmp"
	"context"
	"fmt"

	nethttp "net/http"

	"github.com/prepchat/prepchat/internal/config"
	"github.com/prepchat/prepchat/internal/db"
	"github.com/prepchat/prepchat/internal/graph"
	"github.com/prepchat/prepchat/internal/llm"
	"github.com/prepchat/prepchat/internal/logger"
	"github.com/prepchat/prepchat/internal/repository"
	"github.com/prepchat/prepchat/internal/server/handler/http"
	"github.com/prepchat/prepchat/internal/service"
	"github.com/prepchat/prepchat/internal/session"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config-file, and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init("Info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Initialize the PostgreSQL credential store.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Initialize the Neo4j memory graph store.
	ctx := context.Background()
	graphStore, err := graph.New(ctx, options.Neo4jURI, options.Neo4jUser, options.Neo4jPassword)
	if err != nil {
		zapLogger.Fatal("cannot connect to graph store", zap.Error(err))
	}
	defer func() { _ = graphStore.Close(ctx) }()
	if err := graphStore.InitSchema(ctx); err != nil {
		zapLogger.Fatal("cannot init graph schema", zap.Error(err))
	}

	// Initialize repositories and the session registry.
	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	sessions := session.NewMemoryRegistry()

	// Select the LLM gateway. Gemini answers free-text and extracts
	// candidates in a second call; Groq returns answer and candidates in
	// one structured call, so no separate extractor is wired.
	var generator service.Generator
	var extractor service.Extractor
	switch options.LLMProvider {
	case "groq":
		generator = llm.NewGroqClient(options.GroqAPIKey, options.GroqModel)
	case "gemini":
		gemini := llm.NewGeminiClient(options.GeminiAPIKey)
		generator = gemini
		extractor = gemini
	default:
		zapLogger.Fatal("unknown llm provider", zap.String("provider", options.LLMProvider))
	}

	// Initialize business-logic services.
	authService := service.NewAuthService(authRepo)
	chatService := service.NewChatService(sessions, graphStore, generator, extractor, options.MemoryLimit, zapLogger)

	// Create HTTP handlers for auth and chat endpoints.
	authHandler := &http.AuthHandler{
		AuthService: authService,
		Sessions:    sessions,
		Memories:    graphStore,
		Logger:      zapLogger,
	}
	chatHandler := &http.ChatHandler{
		ChatService: chatService,
		Logger:      zapLogger,
	}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, chatHandler, zapLogger)

	// Create and start the HTTP server.
	server := &nethttp.Server{
		Addr:    options.Addr,
		Handler: router,
	}

	zapLogger.Info("starting server",
		zap.String("addr", options.Addr),
		zap.String("provider", options.LLMProvider),
	)
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start server", zap.Error(err))
	}
}
