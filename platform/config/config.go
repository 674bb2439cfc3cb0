// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// QueueConfig provides settings for the asynq execution substrate.
type QueueConfig interface {
	GetRedisURL() string
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// DocumentStoreConfig provides settings for the media document store.
type DocumentStoreConfig interface {
	GetRedisURL() string
	GetClaimCacheTTL() time.Duration
}

// PipelineConfig provides settings for the orchestration core.
type PipelineConfig interface {
	GetDispatchMode() string
	GetStageMaxRetry() int
	GetStageTimeout() time.Duration
}

// OracleConfig provides settings for the external planning oracle.
type OracleConfig interface {
	GetOracleProvider() string
	GetOracleAPIKey() string
	GetOracleModel() string
	GetOracleBaseURL() string
	GetOracleTimeout() time.Duration
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketMediaUploads() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env              string
	HTTPAddr         string
	DatabaseURL      string
	JWTAccessSecret  string
	CORSAllowAll     bool
	CORSOrigins      []string
	CORSAllowCreds   bool
	RedisURL         string
	AsynqQueueName   string
	AsynqConcurrency int
	DispatchMode     string
	StageMaxRetry    int
	StageTimeout     time.Duration
	ClaimCacheTTL    time.Duration
	OracleProvider   string
	OracleAPIKey     string
	OracleModel      string
	OracleBaseURL    string
	OracleTimeout    time.Duration

	MinIOEndpoint          string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOUseSSL            bool
	MinIOMaxFileSize       int64
	MinioBucketMediaUpload string
}

// Load reads configuration from the environment, consulting .env when present.
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTAccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		CORSAllowAll:     getBoolEnv("CORS_ALLOW_ALL", false),
		CORSOrigins:      getSliceEnv("CORS_ORIGINS"),
		CORSAllowCreds:   getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE_NAME", "default"),
		AsynqConcurrency: getIntEnv("ASYNQ_CONCURRENCY", 10),
		DispatchMode:     getEnv("PIPELINE_DISPATCH_MODE", "chain"),
		StageMaxRetry:    getIntEnv("PIPELINE_STAGE_MAX_RETRY", 2),
		StageTimeout:     getDurationEnv("PIPELINE_STAGE_TIMEOUT", 2*time.Minute),
		ClaimCacheTTL:    getDurationEnv("CLAIM_CACHE_TTL", 24*time.Hour),
		OracleProvider:   getEnv("ORACLE_PROVIDER", "openrouter"),
		OracleAPIKey:     os.Getenv("ORACLE_API_KEY"),
		OracleModel:      getEnv("ORACLE_MODEL", "meta-llama/llama-3.3-70b-instruct"),
		OracleBaseURL:    os.Getenv("ORACLE_BASE_URL"),
		OracleTimeout:    getDurationEnv("ORACLE_TIMEOUT", 60*time.Second),

		MinIOEndpoint:          os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey:         os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey:         os.Getenv("MINIO_SECRET_KEY"),
		MinIOUseSSL:            getBoolEnv("MINIO_USE_SSL", false),
		MinIOMaxFileSize:       getInt64Env("MINIO_MAX_FILE_SIZE", 100*1024*1024),
		MinioBucketMediaUpload: getEnv("MINIO_BUCKET_MEDIA_UPLOADS", "media-uploads"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	switch cfg.DispatchMode {
	case "chain", "independent":
	default:
		return nil, fmt.Errorf("PIPELINE_DISPATCH_MODE must be chain or independent, got %q", cfg.DispatchMode)
	}

	return cfg, nil
}

// =============================================================================
// Interface Implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string    { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetClaimCacheTTL() time.Duration { return c.ClaimCacheTTL }

func (c *Config) GetDispatchMode() string         { return c.DispatchMode }
func (c *Config) GetStageMaxRetry() int           { return c.StageMaxRetry }
func (c *Config) GetStageTimeout() time.Duration  { return c.StageTimeout }

func (c *Config) GetOracleProvider() string        { return c.OracleProvider }
func (c *Config) GetOracleAPIKey() string          { return c.OracleAPIKey }
func (c *Config) GetOracleModel() string           { return c.OracleModel }
func (c *Config) GetOracleBaseURL() string         { return c.OracleBaseURL }
func (c *Config) GetOracleTimeout() time.Duration  { return c.OracleTimeout }

func (c *Config) GetMinIOEndpoint() string          { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string         { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string         { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool              { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64        { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketMediaUploads() string { return c.MinioBucketMediaUpload }

func (c *Config) IsMinIOEnabled() bool {
	return c.MinIOEndpoint != "" && c.MinIOAccessKey != "" && c.MinIOSecretKey != ""
}

// =============================================================================
// Env Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt64Env(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getSliceEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
