// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the pitch deck builder server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"pitchdeck/internal/agent"
	"pitchdeck/internal/ai"
	"pitchdeck/internal/cache"
	"pitchdeck/internal/config"
	"pitchdeck/internal/database"
	"pitchdeck/internal/drafts"
	"pitchdeck/internal/editor"
	"pitchdeck/internal/functions"
	"pitchdeck/internal/gateway"
	"pitchdeck/internal/handlers"
	"pitchdeck/internal/middleware"
	"pitchdeck/internal/render"
	"pitchdeck/internal/router"
	"pitchdeck/internal/session"
	"pitchdeck/internal/storage"
	"pitchdeck/internal/store"
)

func main() {
	if err := config.LoadDotenv(".env"); err != nil {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Text logs in development, JSON everywhere else.
	var handler slog.Handler
	if cfg.IsDev() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
	)

	ctx := context.Background()

	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed a development account (no-op if users already exist).
	if cfg.IsDev() {
		if err := database.Seed(ctx, db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Valkey holds login sessions, drafts and cached diagrams.
	valkeyClient, err := cache.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	secureCookies := !cfg.IsDev()
	sessionStore := session.NewStore(valkeyClient, secureCookies)
	draftStore := drafts.NewStore(valkeyClient, 0)
	diagramCache := cache.NewDiagramCache(valkeyClient, 0)

	renderer, err := render.New()
	if err != nil {
		slog.Error("failed to initialize template renderer", "error", err)
		os.Exit(1)
	}

	deckStore := store.NewDeckStore(db)
	userStore := store.NewUserStore(db)

	aiRegistry := ai.NewRegistry(cfg.AIProvider, map[string]ai.ProviderConfig{
		"openai":  {APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel, ModelImage: cfg.OpenAIImage, BaseURL: cfg.OpenAIBaseURL},
		"gemini":  {APIKey: cfg.GeminiKey, Model: cfg.GeminiModel, ModelImage: cfg.GeminiImage, BaseURL: cfg.GeminiBaseURL},
		"claude":  {APIKey: cfg.ClaudeKey, Model: cfg.ClaudeModel, BaseURL: cfg.ClaudeBaseURL},
		"mistral": {APIKey: cfg.MistralKey, Model: cfg.MistralModel, BaseURL: cfg.MistralBaseURL},
	})
	slog.Info("ai providers initialized",
		"active", aiRegistry.ActiveName(),
		"available", aiRegistry.Available(),
		"images", aiRegistry.SupportsImageGeneration(),
	)

	// Object storage is optional; without it images stay inline as data URIs.
	// Interfaces are only assigned a non-nil client.
	var (
		functionImages functions.Images
		imageRemover   handlers.ImageRemover
		imageFetcher   editor.ImageFetcher
		imageOrigins   []string
	)
	if cfg.StorageEnabled() {
		storageClient, err := storage.New(
			cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
			cfg.S3BucketPublic, cfg.S3PublicURL,
		)
		if err != nil {
			slog.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		if storageClient != nil {
			functionImages = storageClient
			imageRemover = storageClient
			imageFetcher = storageClient
			imageOrigins = []string{cfg.S3Endpoint, cfg.S3PublicURL}
			slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3BucketPublic)
		}
	} else {
		slog.Warn("s3 storage not configured, images are stored inline")
	}

	// The AI functions run in-process unless FUNCTIONS_URL points elsewhere.
	var functionsHandler http.Handler
	functionsLimiter := middleware.NewRateLimiter(rate.Limit(cfg.FunctionsRPS), max(int(cfg.FunctionsRPS*5), 1))
	defer functionsLimiter.Stop()

	functionsURL := cfg.FunctionsURL
	if functionsURL == "" {
		deckAgent := agent.New(aiRegistry, deckStore)
		fnServer := functions.New(aiRegistry, deckStore, deckAgent, functionImages, cfg.FunctionsKey, functionsLimiter)
		functionsHandler = fnServer.Routes()
		functionsURL = "http://127.0.0.1:" + cfg.Port
	}
	gw := gateway.New(functionsURL, cfg.FunctionsKey, cfg.FunctionsTimeout)

	editors := editor.NewManager(deckStore, func(owner uuid.UUID) editor.SessionAI {
		return gw.As(owner)
	}, editor.Options{
		SuggestDelay: cfg.SuggestDelay,
		ImageWorkers: cfg.ImageWorkers,
		Diagrams:     diagramCache,
		Images:       imageFetcher,
		ThemeTimeout: cfg.ThemeTimeout,
	}, cfg.SessionIdleTTL)
	defer editors.Stop()

	loginLimiter := middleware.NewRateLimiter(middleware.PerWindow(5, time.Minute), 5)
	defer loginLimiter.Stop()

	r := router.New(router.Deps{
		Sessions:      sessionStore,
		SecureCookies: secureCookies,
		LoginLimiter:  loginLimiter,
		Auth:          handlers.NewAuth(sessionStore, userStore),
		Decks:         handlers.NewDecks(deckStore, renderer, editors, imageRemover, diagramCache),
		Wizard: handlers.NewWizard(func(owner uuid.UUID) handlers.DeckGenerator {
			return gw.As(owner)
		}, deckStore, draftStore),
		Drafts:    handlers.NewDrafts(draftStore),
		Editor:    handlers.NewEditor(editors, deckStore, cfg.SlowWriteTimeout()),
		Functions: functionsHandler,

		ImageOrigins: imageOrigins,
	})

	// WriteTimeout must accommodate one AI call that waits on the LLM.
	// Theme, analysis and command requests extend their own deadline.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "functions_url", functionsURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
