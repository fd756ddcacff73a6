// Package config loads pipeline configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Config is the full pipeline configuration.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`

	GeminiAPIKey string   `env:"GEMINI_API_KEY"`
	GeminiModels []string `env:"GEMINI_MODELS" envSeparator:","`

	BatchSize            int  `env:"BATCH_SIZE" envDefault:"10"`
	MaxImagesPerAsset    int  `env:"MAX_IMAGES_PER_ASSET" envDefault:"10"`
	FilterBeforeDownload bool `env:"FILTER_BEFORE_DOWNLOAD" envDefault:"true"`

	ImageDir string `env:"IMAGE_DIR" envDefault:"/tmp/runa-images"`

	RenderTimeout time.Duration `env:"RENDER_TIMEOUT" envDefault:"90s"`
	RenderSettle  time.Duration `env:"RENDER_SETTLE_DELAY" envDefault:"5s"`

	FeedURLs []string `env:"FEED_URLS" envSeparator:","`

	MetricsAddr string `env:"METRICS_ADDR" envDefault:""`

	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3Region        string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3AccessKey     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey     string `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle  bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present; real environment variables win.
func Load() (*Config, error) {
	// Ignore the error: a missing .env file is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

// S3Configured reports whether object storage publishing is set up. Without
// it images stay on local disk and storage URLs are left empty.
func (c *Config) S3Configured() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
