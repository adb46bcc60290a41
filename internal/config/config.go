package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"NP_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"NP_DB_MAX_CONNS" default:"8"`

	BatchChunkSize    int `envconfig:"BATCH_CHUNK_SIZE" default:"100"`
	BatchSubBatchSize int `envconfig:"BATCH_SUB_BATCH_SIZE" default:"100"`
	BatchConcurrency  int `envconfig:"BATCH_CONCURRENCY" default:"1"`

	ImportMaxFileBytes int64 `envconfig:"IMPORT_MAX_FILE_BYTES" default:"5242880"`

	TranslationProvider string  `envconfig:"TRANSLATION_PROVIDER" default:"local"`
	TranslationEndpoint string  `envconfig:"TRANSLATION_ENDPOINT" default:""`
	TranslationModel    string  `envconfig:"TRANSLATION_MODEL" default:""`
	MTRequestsPerSecond float64 `envconfig:"MT_REQUESTS_PER_SECOND" default:"5"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("NP_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("NP_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("NP_DB_MIN_CONNS (%d) cannot exceed NP_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.BatchChunkSize < 1 {
		return fmt.Errorf("BATCH_CHUNK_SIZE must be >= 1")
	}
	if c.BatchSubBatchSize < 1 {
		return fmt.Errorf("BATCH_SUB_BATCH_SIZE must be >= 1")
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be >= 1")
	}
	if c.ImportMaxFileBytes < 1 {
		return fmt.Errorf("IMPORT_MAX_FILE_BYTES must be >= 1")
	}
	if c.MTRequestsPerSecond <= 0 {
		return fmt.Errorf("MT_REQUESTS_PER_SECOND must be > 0")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
