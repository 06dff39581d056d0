package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv loads configuration from environment variables
// Parameters:
// - configDir: Directory containing config files (or empty for default)
// - configFilePath: Path to .env file (or empty for default)
func LoadFromEnv(configDir string, configFilePath string) (*Config, error) {
	// Load empty configuration
	cfg := New()

	// If configDir is empty, use the default
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".resqtap")

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	cfg.configDir = configDir

	// Default database and log paths are in the config directory
	cfg.Database.Path = filepath.Join(configDir, "resqtap.db")
	defaultLogPath := filepath.Join(configDir, "resqtap.log")

	// Use provided config file path or default
	if configFilePath == "" {
		configFilePath = filepath.Join(configDir, ".env")
	}

	// Check if ENV_FILE_PATH is set to load from a custom .env file
	envFilePath := getEnvString("ENV_FILE_PATH", "")
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", envFilePath, err)
		}
	} else {
		// Try to load from config directory first, then current directory
		if err := godotenv.Load(configFilePath); err != nil {
			_ = godotenv.Load() // Ignore errors if file doesn't exist
		}
	}

	// Database configuration
	cfg.Database.Path = getEnvString("RESQTAP_DB_PATH", cfg.Database.Path)
	cfg.Database.JournalMode = getEnvString("RESQTAP_DB_JOURNAL_MODE", "WAL")
	cfg.Database.SynchronousMode = getEnvString("RESQTAP_DB_SYNCHRONOUS", "NORMAL")
	cfg.Database.BusyTimeout = getEnvInt("RESQTAP_DB_BUSY_TIMEOUT", 5000)
	cfg.Database.ForeignKeys = getEnvBool("RESQTAP_DB_FOREIGN_KEYS", true)
	cfg.Database.ConnMaxLife = getEnvDuration("RESQTAP_DB_CONN_MAX_LIFE", time.Hour)
	cfg.Database.QueryTimeout = getEnvDuration("RESQTAP_DB_QUERY_TIMEOUT", 30*time.Second)

	// Logging configuration
	cfg.Logging = LoggingConfig{
		Level:      getEnvString("RESQTAP_LOG_LEVEL", "info"),
		Format:     getEnvString("RESQTAP_LOG_FORMAT", "text"),
		Output:     getEnvString("RESQTAP_LOG_OUTPUT", defaultLogPath),
		AddSource:  getEnvBool("RESQTAP_LOG_ADD_SOURCE", false),
		TimeFormat: getEnvString("RESQTAP_LOG_TIME_FORMAT", time.RFC3339),
	}

	// Remote API configuration
	cfg.Server = ServerConfig{
		URL:               getEnvString("RESQTAP_API_URL", ""),
		Token:             getEnvString("RESQTAP_API_TOKEN", ""),
		Timeout:           getEnvDuration("RESQTAP_API_TIMEOUT", 30*time.Second),
		RequestsPerMinute: getEnvInt("RESQTAP_API_REQUESTS_PER_MINUTE", 60),
		BurstLimit:        getEnvInt("RESQTAP_API_BURST_LIMIT", 10),
	}

	// Sync engine configuration
	cfg.Sync = SyncConfig{
		Enabled:     getEnvBool("RESQTAP_SYNC_ENABLED", true),
		MaxRetries:  getEnvInt("RESQTAP_SYNC_MAX_RETRIES", 3),
		PullRetries: getEnvInt("RESQTAP_SYNC_PULL_RETRIES", 2),
	}

	// Training configuration
	cfg.Training = TrainingConfig{
		HistoryLimit:  getEnvInt("RESQTAP_TRAINING_HISTORY_LIMIT", 100),
		RefreshMonths: getEnvInt("RESQTAP_TRAINING_REFRESH_MONTHS", 6),
	}

	return cfg, nil
}

// getEnvString gets a string from environment or returns the default
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an int from environment or returns the default
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool gets a bool from environment or returns the default
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration from environment or returns the default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
