package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Oracle endpoint
	OracleBaseURL string
	OracleAPIKey  string
	OracleModel   string

	// Worker pool
	WorkerCount         int
	MaxQueueSize        int
	MaxConcurrentOracle int

	// Reconciliation
	ChunkItemSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL    time.Duration
	OutputDir string

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("FSRECON_API_KEY"),

		OracleBaseURL: envOr("ORACLE_BASE_URL", "https://api.openai.com/v1"),
		OracleAPIKey:  os.Getenv("ORACLE_API_KEY"),
		OracleModel:   envOr("ORACLE_MODEL", "gpt-4o"),

		WorkerCount:         envInt("WORKER_COUNT", 2),
		MaxQueueSize:        envInt("MAX_QUEUE_SIZE", 50),
		MaxConcurrentOracle: envInt("MAX_CONCURRENT_ORACLE", 10),

		ChunkItemSize: envInt("CHUNK_ITEM_SIZE", 3),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL:    envDuration("JOB_TTL", 1*time.Hour),
		OutputDir: envOr("OUTPUT_DIR", "output"),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxConcurrentOracle <= 0 {
		cfg.MaxConcurrentOracle = 10
	}
	if cfg.ChunkItemSize <= 0 {
		cfg.ChunkItemSize = 3
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("FSRECON_API_KEY is required")
	}
	if c.OracleAPIKey == "" {
		return fmt.Errorf("ORACLE_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
