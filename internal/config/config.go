package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/omrgest/internal/omr"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Azure Document Intelligence
	AzureEndpoint     string
	AzureKey          string
	AzureModel        string
	AzureAPIVersion   string
	AzurePollInterval time.Duration
	AzureTimeout      time.Duration

	// Recognition constants
	OMR omr.Config

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64
	MaxPDFPages    int

	// Job state
	JobTTL time.Duration

	// History
	DatabasePath string
}

// Load reads configuration from the environment. A .env file in the working
// directory, or the one named by OMRGEST_ENV_FILE, is loaded first; variables
// already set in the environment take precedence.
func Load() Config {
	loadDotEnv()

	def := omr.DefaultConfig()
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("OMRGEST_API_KEY"),

		AzureEndpoint:     os.Getenv("AZURE_DOCUMENT_INTELLIGENCE_ENDPOINT"),
		AzureKey:          os.Getenv("AZURE_DOCUMENT_INTELLIGENCE_KEY"),
		AzureModel:        envOr("AZURE_DOCUMENT_INTELLIGENCE_MODEL", "prebuilt-layout"),
		AzureAPIVersion:   envOr("AZURE_DOCUMENT_INTELLIGENCE_API_VERSION", "2024-11-30"),
		AzurePollInterval: envDuration("AZURE_POLL_INTERVAL", 1*time.Second),
		AzureTimeout:      envDuration("AZURE_TIMEOUT", 2*time.Minute),

		OMR: omr.Config{
			ConfidenceFloor: envFloat("OMR_CONFIDENCE_FLOOR", def.ConfidenceFloor),
			SortTolerance:   envFloat("OMR_SORT_TOLERANCE", def.SortTolerance),
			RowTolerance:    envFloat("OMR_ROW_TOLERANCE", def.RowTolerance),
			Letters:         envOr("OMR_LETTERS", def.Letters),
			IDPrefix:        envOr("OMR_ID_PREFIX", def.IDPrefix),
		},

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 20971520), // 20MB
		MaxPDFPages:    envInt("MAX_PDF_PAGES", 20),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		DatabasePath: envOr("DATABASE_PATH", "omrgest.db"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20971520
	}
	if cfg.MaxPDFPages < 0 {
		cfg.MaxPDFPages = 0
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate checks settings required at startup. Missing Azure credentials
// are not fatal here: each document then fails with a descriptive result.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("OMRGEST_API_KEY is required")
	}
	if err := c.OMR.Validate(); err != nil {
		return fmt.Errorf("omr: %w", err)
	}
	return nil
}

// HasAzureCredentials reports whether the analyzer can be reached.
func (c Config) HasAzureCredentials() bool {
	return c.AzureEndpoint != "" && c.AzureKey != ""
}

func loadDotEnv() {
	if path := os.Getenv("OMRGEST_ENV_FILE"); path != "" {
		_ = godotenv.Load(path)
		return
	}
	_ = godotenv.Load()
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
