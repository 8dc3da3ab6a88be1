package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"subtrack/internal/amqp"
	"subtrack/internal/config"
	apphttp "subtrack/internal/http"
	"subtrack/internal/mail"
	"subtrack/internal/mail/gmail"
	"subtrack/internal/mail/logmail"
	"subtrack/internal/services"
	"subtrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting subtrack server")

	// Load configuration
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Initialize SQLite repository (runs schema migrations)
	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	// Initialize AMQP client for publishing subscription change events
	// The notify-worker consumes these and mails confirmations
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
			amqpClient = nil
		} else {
			logger.Info("AMQP client initialized - change events will be published")
		}
	} else {
		logger.Info("AMQP disabled - subscription change events will not be published")
	}

	// Choose mail backend for the in-process reminder trigger
	sender, err := buildMailSender(cfg)
	if err != nil {
		logger.Error("Failed to initialize mail backend", "error", err, "backend", cfg.MailBackend)
		os.Exit(1)
	}
	logger.Info("Mail backend initialized", "backend", cfg.MailBackend)

	// Owns both the repository and the AMQP client; closed as one unit
	subscriptionService := services.NewSubscriptionService(sqliteRepo, amqpClient)
	defer subscriptionService.Close()
	reminderService := services.NewReminderService(sqliteRepo, sender, services.ReminderOptions{
		WindowDays:        cfg.ReminderWindowDays,
		From:              cfg.MailFrom,
		DispatchLimit:     cfg.ReminderDispatchLimit,
		TrackLastNotified: cfg.ReminderTrackLastNotified,
	})

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		ReminderSecret: cfg.ReminderSecret,
		SessionTTL:     cfg.SessionTTL,
	}, sqliteRepo, subscriptionService, reminderService)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting subtrack server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

func buildMailSender(cfg *config.Config) (mail.Sender, error) {
	switch cfg.MailBackend {
	case "gmail":
		return gmail.NewFromEnv(context.Background())
	default:
		return logmail.New(), nil
	}
}
