// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/threadline-ai/chat-platform/internal/config"
	"github.com/threadline-ai/chat-platform/internal/events"
	"github.com/threadline-ai/chat-platform/internal/handler"
	"github.com/threadline-ai/chat-platform/internal/llm"
	"github.com/threadline-ai/chat-platform/internal/middleware"
	"github.com/threadline-ai/chat-platform/internal/service"
	"github.com/threadline-ai/chat-platform/internal/storage"
	"github.com/threadline-ai/chat-platform/internal/store"
	"github.com/threadline-ai/chat-platform/pkg/logger"
	"github.com/threadline-ai/chat-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to the document store. Without MONGO_URI the server runs on the
	// in-memory store; fine for local development, data is lost on restart.
	var (
		convStore   store.ConversationStore
		msgStore    store.MessageStore
		readyChecks = map[string]handler.ReadyCheck{}
	)
	if cfg.MongoURI != "" {
		client, err := store.Connect(ctx, cfg.MongoURI)
		if err != nil {
			log.Error("failed to connect to mongodb", zap.Error(err))
			os.Exit(1)
		}
		defer client.Disconnect(ctx)

		mongoStore := store.NewMongo(client.Database(cfg.MongoDatabase))
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			log.Error("failed to create indexes", zap.Error(err))
			os.Exit(1)
		}
		convStore = mongoStore.Conversations()
		msgStore = mongoStore.Messages()
		readyChecks["mongodb"] = func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}
	} else {
		log.Warn("MONGO_URI not set, using in-memory store")
		mem := store.NewMemory()
		convStore = mem.Conversations()
		msgStore = mem.Messages()
	}

	// Connect to NATS for lifecycle event fan-out. Optional: without NATS_URL
	// the publisher is nil and events are dropped.
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		natsClient, err := events.Connect(ctx, events.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		publisher = events.NewPublisher(natsClient, log)
		if err := publisher.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure event stream", zap.Error(err))
			os.Exit(1)
		}
	}

	// Initialize the completion provider
	var llmClient llm.Client
	apiKey := cfg.OpenAIAPIKey
	if llm.Provider(cfg.LLMProvider) == llm.ProviderAnthropic {
		apiKey = cfg.AnthropicAPIKey
	}
	if apiKey != "" {
		llmClient, err = llm.NewClient(llm.Provider(cfg.LLMProvider), apiKey, cfg.OpenAIBaseURL)
		if err != nil {
			log.Warn("failed to create completion client, chat disabled", zap.Error(err))
		}
	} else {
		log.Warn("no completion API key configured, chat disabled")
	}

	// Initialize object storage. Optional: without COS_BUCKET_URL uploads
	// are rejected.
	var objectStorage storage.ObjectStorage
	if cfg.COSBucketURL != "" {
		objectStorage, err = storage.NewCOS(cfg.COSBucketURL, cfg.COSSecretID, cfg.COSSecretKey)
		if err != nil {
			log.Error("failed to create object storage client", zap.Error(err))
			os.Exit(1)
		}
	}

	// Initialize services
	conversationSvc := service.NewConversationService(convStore, publisher, log)
	messageSvc := service.NewMessageService(msgStore, conversationSvc, publisher, log)
	chatSvc := service.NewChatService(msgStore, conversationSvc, llmClient, cfg.ChatModel, publisher, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(readyChecks)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(messageSvc, log)
	chatHandler := handler.NewChatHandler(chatSvc, log)
	uploadHandler := handler.NewUploadHandler(objectStorage, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Conversations
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Put("/", conversationHandler.Update)
				r.Delete("/", conversationHandler.Delete)
			})
		})

		// Messages
		r.Route("/messages", func(r chi.Router) {
			r.Get("/", messageHandler.List)
			r.Post("/", messageHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", messageHandler.Update)
				r.Delete("/", messageHandler.Delete)
				r.Delete("/after", messageHandler.DeleteTail)
				r.Post("/regenerate", chatHandler.Regenerate)
			})
		})

		// Chat
		r.Post("/chat", chatHandler.Chat)

		// Uploads
		r.Post("/upload", uploadHandler.Upload)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
