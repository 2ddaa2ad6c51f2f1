// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendBigQuery = "bigquery"
	BackendMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	ProjectID string
	Dataset   string
	Bucket    string // GCS bucket for archived statements; empty disables uploads

	Port     string
	LogLevel string

	StoreBackend string
	Categorizer  string // "first" or "gemini"
	GeminiModel  string

	NotionToken string
	NotionDBID  string

	// RecurringSchedule is a cron expression for the monthly recurring sweep.
	// Empty disables the scheduler.
	RecurringSchedule string
	Workers           int
	QueueSize         int
	MaxRetries        int
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ProjectID:         getEnv("GCP_PROJECT", ""),
		Dataset:           getEnv("BQ_DATASET", "ledger"),
		Bucket:            getEnv("GCS_BUCKET", ""),
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", BackendBigQuery)),
		Categorizer:       strings.ToLower(getEnv("CATEGORIZER", "first")),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		NotionToken:       getEnv("NOTION_TOKEN", ""),
		NotionDBID:        getEnv("NOTION_DB_ID", ""),
		RecurringSchedule: getEnv("RECURRING_SCHEDULE", "0 6 1 * *"),
		Workers:           getEnvAsInt("WORKER_COUNT", 1),
		QueueSize:         getEnvAsInt("QUEUE_SIZE", 100),
		MaxRetries:        getEnvAsInt("JOB_MAX_RETRIES", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendBigQuery:
		if c.ProjectID == "" {
			return fmt.Errorf("config: GCP_PROJECT is required for the %s backend", BackendBigQuery)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: WORKER_COUNT must be at least 1, got %d", c.Workers)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: JOB_MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	return nil
}

// NotionEnabled reports whether Notion credentials are configured.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionDBID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
