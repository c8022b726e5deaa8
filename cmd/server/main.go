/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the FundKeeper server. Handles configuration,
  dependency injection, the reminder scheduler, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment configuration
  2. Build the logger
  3. Open the SQLite store
  4. Create API handler and router
  5. Start the overdue-reminder scheduler
  6. Start server with graceful shutdown

ENVIRONMENT:
  PORT               HTTP port (default: 8080)
  DB_PATH            SQLite database path (default: fundkeeper.db)
  LOG_LEVEL          trace|debug|info|warn|error (default: info)
  ENVIRONMENT        development|staging|production
  REMINDER_SCHEDULE  Cron expression for the overdue sweep
  BACKUP_DIR         Directory for VACUUM INTO backups

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the reminder scheduler
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - api/reminder.go: Scheduled reminders
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rangdhanu/fundkeeper/api"
	"github.com/rangdhanu/fundkeeper/config"
	"github.com/rangdhanu/fundkeeper/logger"
	"github.com/rangdhanu/fundkeeper/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	if err := os.MkdirAll(cfg.BackupDir, 0o755); err != nil {
		log.WithError(err).Fatal("failed to create backup directory")
	}

	handler := api.NewHandler(store, log, cfg.BackupDir)
	router := api.NewRouter(handler)

	reminder := api.NewReminder(store, log)
	if err := reminder.Start(cfg.ReminderSchedule); err != nil {
		log.WithError(err).Fatal("failed to start reminder scheduler")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	reminder.Stop()

	log.Info("server stopped")
}
