// Package config loads and finalizes the application configuration from
// TOML files and environment overrides. All components receive explicit
// config structs at construction; there are no process-wide mutable values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/onenotify/onenotify/pkg/database"
	"github.com/onenotify/onenotify/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvOnenotifyEnv             = "ONENOTIFY_ENV"
	EnvOnenotifyShutdownTimeout = "ONENOTIFY_SHUTDOWN_TIMEOUT"
	EnvOnenotifyVersion         = "ONENOTIFY_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "ONENOTIFY_DB_HOST",
	Port:            "ONENOTIFY_DB_PORT",
	Name:            "ONENOTIFY_DB_NAME",
	User:            "ONENOTIFY_DB_USER",
	Password:        "ONENOTIFY_DB_PASSWORD",
	SSLMode:         "ONENOTIFY_DB_SSL_MODE",
	MaxOpenConns:    "ONENOTIFY_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "ONENOTIFY_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "ONENOTIFY_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "ONENOTIFY_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	BaseDir: "ONENOTIFY_STORAGE_BASE_DIR",
}

// Config is the root configuration for the onenotify automation.
type Config struct {
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	Session         SessionConfig    `toml:"session"`
	Portal          PortalConfig     `toml:"portal"`
	Processing      ProcessingConfig `toml:"processing"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
}

// Env returns the ONENOTIFY_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvOnenotifyEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Session.Merge(&overlay.Session)
	c.Portal.Merge(&overlay.Portal)
	c.Processing.Merge(&overlay.Processing)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Session.Finalize(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Portal.Finalize(); err != nil {
		return fmt.Errorf("portal: %w", err)
	}
	if err := c.Processing.Finalize(); err != nil {
		return fmt.Errorf("processing: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvOnenotifyShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvOnenotifyVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvOnenotifyEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
