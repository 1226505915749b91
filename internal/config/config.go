// Package config provides configuration management for the whisper-router.
// It loads settings from environment variables with the WHISPER_ prefix and
// provides sensible defaults for all configuration options.
//
// Classifier tuning (keyword tables and thresholds) lives in a separate YAML
// file so deployments can adjust classification behavior without rebuilding.
// See tuning.go for loading and watcher.go for hot reload.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration settings for the whisper-router daemon.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Router   RouterConfig
	Security SecurityConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 7474)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	// Engine selects the backing stores: "postgres" (pgvector + lib/pq)
	// or "sqlite" (modernc, single-node). Default: sqlite.
	Engine string

	// PostgresDSN is the lib/pq connection string when Engine is postgres.
	PostgresDSN string

	// DataPath is the data directory for the sqlite engine (default: ./data).
	DataPath string

	// Collection is the logical memory collection for this conversational
	// agent. One collection per agent persona.
	Collection string
}

// RouterConfig contains retrieval fan-out tuning.
type RouterConfig struct {
	// VectorTimeout bounds each vector sub-operation (default: 150ms).
	VectorTimeout time.Duration

	// GraphTimeout bounds each fact/graph sub-operation (default: 100ms).
	GraphTimeout time.Duration

	// DefaultLimit is the result cap when the caller does not specify one.
	DefaultLimit int

	// TuningPath points to the optional classifier tuning YAML file.
	// Empty means built-in defaults only.
	TuningPath string
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // "development" or "production" (default: development)
	APIToken     string // Bearer token required in production mode
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the WHISPER_ prefix.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("WHISPER_PORT", 7474),
			Host: getEnv("WHISPER_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			Engine:      getEnv("WHISPER_STORAGE_ENGINE", "sqlite"),
			PostgresDSN: getEnv("WHISPER_POSTGRES_DSN", ""),
			DataPath:    getEnv("WHISPER_DATA_PATH", "./data"),
			Collection:  getEnv("WHISPER_COLLECTION", "default"),
		},
		Router: RouterConfig{
			VectorTimeout: getEnvDuration("WHISPER_VECTOR_TIMEOUT", 150*time.Millisecond),
			GraphTimeout:  getEnvDuration("WHISPER_GRAPH_TIMEOUT", 100*time.Millisecond),
			DefaultLimit:  getEnvInt("WHISPER_DEFAULT_LIMIT", 10),
			TuningPath:    getEnv("WHISPER_TUNING_PATH", ""),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("WHISPER_SECURITY_MODE", "development"),
			APIToken:     getEnv("WHISPER_API_TOKEN", ""),
		},
	}, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the variable exists but cannot be parsed, the default is used.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable ("150ms", "2s")
// or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
