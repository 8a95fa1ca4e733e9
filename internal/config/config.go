package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every option named in the external interfaces: the HTTP
// port, chunking/size limits, filesystem roots, sweeper cadence, and
// ambient logging level.
type Config struct {
	Port int

	ChunkSize          int64
	MaxFileSize        int64
	MaxFiles           int
	AllowedTypes       []string
	MaxParallelUploads int

	StorageRoot  string
	StagingRoot  string
	SessionDBDSN string

	ChunkTimeout  time.Duration
	RetentionDays int

	Environment string
	LogLevel    string
}

var defaultAllowedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"video/mp4",
	"video/quicktime",
	"video/x-msvideo",
	"video/mpeg",
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Port = getEnvInt("PORT", 8080)

	cfg.ChunkSize = getEnvInt64("CHUNK_SIZE", 1_048_576)
	cfg.MaxFileSize = getEnvInt64("MAX_FILE_SIZE", 524_288_000)
	cfg.MaxFiles = getEnvInt("MAX_FILES", 10)
	cfg.AllowedTypes = getEnvStringList("ALLOWED_TYPES", defaultAllowedTypes)
	cfg.MaxParallelUploads = getEnvInt("MAX_PARALLEL_UPLOADS", 3)

	cfg.StorageRoot = getEnvString("STORAGE_ROOT", "./data/storage")
	cfg.StagingRoot = getEnvString("STAGING_ROOT", "./data/staging")
	cfg.SessionDBDSN = getEnvString("SESSION_DB_DSN", "./data/sessions.db")

	chunkTimeout, err := getEnvDuration("CHUNK_TIMEOUT", "30m")
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_TIMEOUT: %w", err)
	}
	cfg.ChunkTimeout = chunkTimeout
	cfg.RetentionDays = getEnvInt("RETENTION_DAYS", 30)

	cfg.Environment = getEnvString("ENVIRONMENT", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvStringList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return time.ParseDuration(value)
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("invalid chunk size: %d", c.ChunkSize)
	}

	if c.MaxFileSize < 1 {
		return fmt.Errorf("invalid max file size: %d", c.MaxFileSize)
	}

	if len(c.AllowedTypes) == 0 {
		return fmt.Errorf("allowed types must not be empty")
	}

	if c.MaxParallelUploads < 1 {
		return fmt.Errorf("invalid max parallel uploads: %d", c.MaxParallelUploads)
	}

	if c.StorageRoot == "" || c.StagingRoot == "" {
		return fmt.Errorf("storage root and staging root are required")
	}

	if c.ChunkTimeout <= 0 {
		return fmt.Errorf("invalid chunk timeout: %s", c.ChunkTimeout)
	}

	if c.RetentionDays < 1 {
		return fmt.Errorf("invalid retention days: %d", c.RetentionDays)
	}

	return nil
}
