package storage

import (
	"fmt"
	"os"
)

// Config holds document store parameters.
type Config struct {
	BaseDir string `toml:"base_dir"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BaseDir string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.BaseDir != "" {
		c.BaseDir = overlay.BaseDir
	}
}

func (c *Config) loadDefaults() {
	if c.BaseDir == "" {
		c.BaseDir = "downloads"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BaseDir != "" {
		if v := os.Getenv(env.BaseDir); v != "" {
			c.BaseDir = v
		}
	}
}

func (c *Config) validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir required")
	}
	return nil
}
