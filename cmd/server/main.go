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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hanashite/internal/audio"
	"hanashite/internal/config"
	"hanashite/internal/database"
	"hanashite/internal/feedback"
	"hanashite/internal/handlers"
	"hanashite/internal/logging"
	"hanashite/internal/metrics"
	"hanashite/internal/repository"
	"hanashite/internal/security"
	"hanashite/internal/service"
	"hanashite/internal/speech"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hanashite: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connection established", zap.String("type", cfg.DatabaseType))

	if err := db.RunMigrations(ctx, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m := metrics.New()

	// External clients
	transcriber, err := speech.NewClient(ctx, speech.Config{
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		Endpoint:        cfg.SpeechEndpoint,
		Language:        cfg.SpeechLanguage,
	})
	if err != nil {
		return err
	}
	reviewer := feedback.NewClient(feedback.Config{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
	})
	mailer, err := service.NewEmailService(ctx, cfg.SESRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.EmailDebug, logger)
	if err != nil {
		return err
	}
	tokens, err := security.NewTokenManager(cfg.AuthTokenSecret, cfg.AuthTokenIssuer)
	if err != nil {
		return err
	}

	// Initialize services
	store := audio.NewStore(cfg.AudioStoragePath, cfg.AudioBaseURL, cfg.UploadMaxSize)
	streaks := service.NewStreakService(db, cfg.Timezone, m, logger)
	dispatcher := service.NewOutboxDispatcher(db, streaks, service.DispatcherConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	}, m, logger)
	topics := service.NewTopicService(db, logger)
	practices := service.NewPracticeService(db, store, transcriber, reviewer, dispatcher, m, logger)
	teachers := service.NewTeacherService(db, cfg.Timezone)
	alerts := service.NewAlertService(db, teachers, mailer, m, logger)
	uploads := security.NewRateLimiter(cfg.UploadRateLimit, cfg.UploadRateWindow)

	// Seed default topics
	if n, err := topics.SeedDefaultTopics(ctx); err != nil {
		logger.Warn("failed to seed default topics", zap.Error(err))
	} else {
		logger.Info("default topics seeded", zap.Int("count", n))
	}

	handler := handlers.NewRouter(handlers.Routes{
		Middleware: handlers.NewMiddleware(tokens, repository.NewUserRepository(db), teachers, uploads, logger),
		Topics:     handlers.NewTopicHandler(topics, logger),
		Practices:  handlers.NewPracticeHandler(practices, cfg.UploadMaxSize, cfg.Timezone, logger),
		Dashboard:  handlers.NewDashboardHandler(service.NewDashboardService(db, cfg.Timezone), streaks, logger),
		Teacher:    handlers.NewTeacherHandler(teachers, logger),
		Export:     handlers.NewExportHandler(teachers, logger),
		Audio:      handlers.NewAudioHandler(store, teachers, logger),
		Health:     handlers.Healthz(db, logger),
		Metrics:    m,
		Logger:     logger,
	})

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// uploads wait on transcription and feedback generation
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Background workers stop when the signal context is cancelled
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		alerts.Run(gctx, cfg.AlertScanInterval)
		return nil
	})
	g.Go(func() error {
		uploads.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
