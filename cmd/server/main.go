package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xaenox/email-assistant/internal/actor"
	"github.com/xaenox/email-assistant/internal/api"
	"github.com/xaenox/email-assistant/internal/assistant"
	"github.com/xaenox/email-assistant/internal/auth"
	"github.com/xaenox/email-assistant/internal/llm"
	"github.com/xaenox/email-assistant/internal/pipeline"
	"github.com/xaenox/email-assistant/internal/provider"
	"github.com/xaenox/email-assistant/internal/storage"
	"github.com/xaenox/email-assistant/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("JWT secret is not configured")
	}

	// Initialize storage
	var store storage.Store
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStore()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStore(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Actors
	mailboxes := actor.NewMailboxes(store, logger)
	sessions := actor.NewSessions(store, logger)

	// Inference and orchestration
	llmClient := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)
	processor := pipeline.NewProcessor(llmClient, logger)
	asst := assistant.New(llmClient, mailboxes, sessions, logger)

	// Auth and provider credentials
	authService := auth.NewService(mailboxes, cfg.Auth.JWTSecret, logger)
	gmail := provider.NewGmailClient(provider.GmailConfig{
		ClientID:     cfg.Gmail.ClientID,
		ClientSecret: cfg.Gmail.ClientSecret,
		RedirectURI:  cfg.Gmail.RedirectURI,
	}, logger)
	providers := provider.NewManager(mailboxes, gmail, logger)

	server := api.NewServer(authService, mailboxes, sessions, processor, asst, gmail, providers, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}
