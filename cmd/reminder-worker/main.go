package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"subtrack/internal/config"
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

	logger.Info("Starting reminder-worker")

	// Load configuration
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Initialize SQLite repository
	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	// Choose mail backend
	var sender mail.Sender
	switch cfg.MailBackend {
	case "gmail":
		sender, err = gmail.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Gmail sender", "error", err)
			os.Exit(1)
		}
	default:
		sender = logmail.New()
	}
	logger.Info("Mail backend initialized", "backend", cfg.MailBackend)

	reminderService := services.NewReminderService(sqliteRepo, sender, services.ReminderOptions{
		WindowDays:        cfg.ReminderWindowDays,
		From:              cfg.MailFrom,
		DispatchLimit:     cfg.ReminderDispatchLimit,
		TrackLastNotified: cfg.ReminderTrackLastNotified,
	})

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Reminder worker configured",
		"interval", cfg.ReminderInterval,
		"window_days", cfg.ReminderWindowDays,
		"sqlite_db", cfg.SQLiteDBPath)

	// Setup periodic reminder ticker
	ticker := time.NewTicker(cfg.ReminderInterval)
	defer ticker.Stop()

	// Run initial pass on startup
	logger.Info("Running initial reminder pass...")
	if result, err := reminderService.Run(ctx, time.Now()); err != nil {
		logger.Error("Initial reminder pass failed", "error", err)
	} else {
		logger.Info("Initial reminder pass complete", "processed", result.Processed, "sent", result.Sent)
	}

	// Start periodic passes
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				logger.Info("Running reminder pass...")
				result, err := reminderService.Run(ctx, now)
				if err != nil {
					logger.Error("Reminder pass failed", "error", err)
				} else {
					logger.Info("Reminder pass complete",
						"processed", result.Processed,
						"sent", result.Sent,
						"next_check", now.Add(cfg.ReminderInterval).Format("15:04:05"))
				}
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down reminder-worker...")
	cancel()

	// Wait for shutdown or timeout
	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(2 * time.Second):
		logger.Info("Reminder-worker shutdown complete")
	}
}
