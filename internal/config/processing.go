package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvProcessingBatchSize   = "ONENOTIFY_PROCESSING_BATCH_SIZE"
	EnvProcessingMaxAttempts = "ONENOTIFY_PROCESSING_MAX_ATTEMPTS"
	EnvProcessingWindowDays  = "ONENOTIFY_PROCESSING_WINDOW_DAYS"
)

// ProcessingConfig holds batch and retry policy for the detail stage.
type ProcessingConfig struct {
	BatchSize       int    `toml:"batch_size"`
	MaxAttempts     int    `toml:"max_attempts"`
	WindowDays      int    `toml:"window_days"`
	DownloadTimeout string `toml:"download_timeout"`
	// ContinueAfterExtractionFailure keeps the run going into detail
	// processing with whatever is already queued when the extraction stage
	// fails outright.
	ContinueAfterExtractionFailure *bool `toml:"continue_after_extraction_failure"`
}

// DownloadTimeoutDuration returns DownloadTimeout as a time.Duration.
func (c *ProcessingConfig) DownloadTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.DownloadTimeout)
	return d
}

// ContinueAfterExtraction reports the extraction-failure policy, defaulting
// to true.
func (c *ProcessingConfig) ContinueAfterExtraction() bool {
	return c.ContinueAfterExtractionFailure == nil || *c.ContinueAfterExtractionFailure
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ProcessingConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ProcessingConfig) Merge(overlay *ProcessingConfig) {
	if overlay.BatchSize != 0 {
		c.BatchSize = overlay.BatchSize
	}
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.WindowDays != 0 {
		c.WindowDays = overlay.WindowDays
	}
	if overlay.DownloadTimeout != "" {
		c.DownloadTimeout = overlay.DownloadTimeout
	}
	if overlay.ContinueAfterExtractionFailure != nil {
		c.ContinueAfterExtractionFailure = overlay.ContinueAfterExtractionFailure
	}
}

func (c *ProcessingConfig) loadDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 20
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.WindowDays == 0 {
		c.WindowDays = 3
	}
	if c.DownloadTimeout == "" {
		c.DownloadTimeout = "60s"
	}
}

func (c *ProcessingConfig) loadEnv() {
	if v := os.Getenv(EnvProcessingBatchSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BatchSize = n
		}
	}
	if v := os.Getenv(EnvProcessingMaxAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxAttempts = n
		}
	}
	if v := os.Getenv(EnvProcessingWindowDays); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WindowDays = n
		}
	}
}

func (c *ProcessingConfig) validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if c.WindowDays < 1 {
		return fmt.Errorf("window_days must be at least 1")
	}
	if _, err := time.ParseDuration(c.DownloadTimeout); err != nil {
		return fmt.Errorf("invalid download_timeout: %w", err)
	}
	return nil
}
