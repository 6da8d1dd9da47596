// Package config loads runtime configuration from the environment.
//
// A local .env file is loaded when present so development does not need
// exported variables. Every setting has a sensible default; the server
// starts with zero configuration.
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting the server consumes.
type Config struct {
	Env            string
	Port           string
	DBPath         string
	WebhookURL     string
	AllowedOrigins []string
	LogLevel       slog.Level
}

// Load reads configuration from the environment, preferring a .env file
// when one exists in the working directory.
func Load() Config {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	return Config{
		Env:            getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "./data/salon.db"),
		WebhookURL:     getEnv("WEBHOOK_URL", ""),
		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "*")),
		LogLevel:       parseLogLevel(getEnv("LOG_LEVEL", "info")),
	}
}

// IsProduction reports whether the server runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
