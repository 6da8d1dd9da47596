/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the salon engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env / environment)
  2. Build the structured logger
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION (environment, .env supported):
  PORT              HTTP server port (default: 8080)
  DB_PATH           SQLite database path (default: ./data/salon.db)
                    Use ":memory:" for in-memory database
  WEBHOOK_URL       Appointment-confirmation webhook (empty disables it)
  ALLOWED_ORIGINS   Comma-separated CORS origins (default: *)
  LOG_LEVEL         debug|info|warn|error (default: info)
  APP_ENV           development|production

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - config/config.go: Environment loading
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"github.com/go-chi/httplog/v3"

	"github.com/solera/salon-engine/api"
	"github.com/solera/salon-engine/config"
	"github.com/solera/salon-engine/notify"
	"github.com/solera/salon-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	logFormat := httplog.SchemaECS.Concise(!cfg.IsProduction())
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.LogLevel,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "salon-engine"),
		slog.String("env", cfg.Env),
	)
	slog.SetDefault(logger)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	notifier := notify.NewNotifier(cfg.WebhookURL, logger)
	handler := api.NewHandler(store, notifier)
	router := api.NewRouter(handler, api.RouterOptions{
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
