package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"arbor/internal/capabilities"
	"arbor/internal/config"
	"arbor/internal/domain/repositories"
	"arbor/internal/events"
	"arbor/internal/handler"
	"arbor/internal/handler/sse"
	"arbor/internal/middleware"
	"arbor/internal/repository/memory"
	"arbor/internal/repository/postgres"
	chatService "arbor/internal/service/chat"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" || cfg.Debug {
		logLevel = slog.LevelDebug
	}

	var logOutput io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, 10)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOutput = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger) // Set as default logger

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
	)

	// Shutdown context; SIGINT/SIGTERM also ends every SSE stream because
	// request contexts derive from it via BaseContext.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Settings repository: postgres when configured, in-memory otherwise
	var settingsRepo repositories.SettingsRepository
	if cfg.DatabaseURL != "" {
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()

		tables := postgres.NewTableNames(cfg.TablePrefix)
		if err := postgres.EnsureSettingsSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to ensure settings schema: %v", err)
		}

		settingsRepo = postgres.NewSettingsRepository(&postgres.RepositoryConfig{
			Pool:   pool,
			Tables: tables,
			Logger: logger,
		})

		logger.Info("database connected",
			"table", tables.Settings,
		)
	} else {
		settingsRepo = memory.NewSettingsRepository()
		logger.Info("DATABASE_URL not set, settings are kept in memory")
	}

	// Create the event router
	router, err := events.NewRouter(logger)
	if err != nil {
		log.Fatalf("Failed to create event router: %v", err)
	}

	// Setup completion providers
	providerRegistry, err := chatService.SetupProviders(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to setup completion providers: %v", err)
	}

	// Initialize capability registry
	capabilityRegistry, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to initialize capability registry: %v", err)
	}
	logger.Info("capability registry initialized")

	// Setup chat services (store, settings, background workers)
	services, err := chatService.SetupServices(
		settingsRepo,
		providerRegistry,
		router,
		capabilityRegistry,
		cfg,
		logger,
	)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}

	// Run the event router before serving; workers only consume after
	// Running closes, and messages published earlier would be dropped.
	go func() {
		if err := router.Run(ctx); err != nil {
			logger.Error("event router stopped", "error", err)
		}
	}()
	<-router.Running()

	// Create handlers
	conversationHandler := handler.NewConversationHandler(services.Store, logger)
	nodeHandler := handler.NewNodeHandler(services.Store, logger)
	settingsHandler := handler.NewSettingsHandler(services.Settings, logger)
	modelsHandler := handler.NewModelsHandler(cfg, logger, capabilityRegistry)
	eventsHandler := handler.NewEventsHandler(services.Store, router, sse.DefaultConfig(), logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", handler.HealthCheck)

	// Model catalog
	mux.HandleFunc("GET /api/models", modelsHandler.ListModels)

	// Default generation settings
	mux.HandleFunc("GET /api/settings", settingsHandler.GetDefaults)
	mux.HandleFunc("PUT /api/settings", settingsHandler.UpdateDefaults)

	// Conversation routes
	mux.HandleFunc("POST /api/conversations", conversationHandler.CreateConversation)
	mux.HandleFunc("GET /api/conversations", conversationHandler.ListConversations)
	mux.HandleFunc("GET /api/conversations/{id}", conversationHandler.GetConversation)
	mux.HandleFunc("PATCH /api/conversations/{id}", conversationHandler.RenameConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", conversationHandler.DeleteConversation)
	mux.HandleFunc("GET /api/conversations/{id}/tree", conversationHandler.GetTree)
	mux.HandleFunc("POST /api/conversations/{id}/messages", conversationHandler.SendMessage)
	mux.HandleFunc("PATCH /api/conversations/{id}/settings", conversationHandler.UpdateSettings)

	// Store event stream
	mux.HandleFunc("GET /api/conversations/{id}/events", eventsHandler.StreamEvents)

	// Node routes (bodies carry the conversation id)
	mux.HandleFunc("POST /api/nodes/{id}/edit", nodeHandler.EditMessage)
	mux.HandleFunc("POST /api/nodes/{id}/select", nodeHandler.SelectVersion)
	mux.HandleFunc("POST /api/nodes/{id}/regenerate", nodeHandler.RegenerateReply)
	mux.HandleFunc("POST /api/nodes/{id}/switch", nodeHandler.SwitchToNode)

	// Build middleware chain
	var httpHandler http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Routes
	httpHandler = middleware.Recovery(logger)(httpHandler)

	// CORS - must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Last-Event-ID"},
		AllowCredentials: true,
	})
	httpHandler = corsHandler.Handler(httpHandler)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	// Start server
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	if err := router.Close(); err != nil {
		logger.Error("event router close failed", "error", err)
	}

	logger.Info("server stopped")
}
