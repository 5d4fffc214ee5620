package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvSessionBudget        = "ONENOTIFY_SESSION_BUDGET"
	EnvSessionLoginAttempts = "ONENOTIFY_SESSION_LOGIN_ATTEMPTS"
	EnvSessionLoginBackoff  = "ONENOTIFY_SESSION_LOGIN_BACKOFF"
	EnvSessionSettleDelay   = "ONENOTIFY_SESSION_SETTLE_DELAY"
	EnvSessionLogoutTimeout = "ONENOTIFY_SESSION_LOGOUT_TIMEOUT"
)

// SessionConfig holds session lifecycle parameters. Budget is the wall-clock
// time after which a session must be renewed before further navigation; the
// portal invalidates sessions server-side at around 30 minutes, so the
// default stays safely below that.
type SessionConfig struct {
	Budget        string `toml:"budget"`
	LoginAttempts int    `toml:"login_attempts"`
	LoginBackoff  string `toml:"login_backoff"`
	SettleDelay   string `toml:"settle_delay"`
	LogoutTimeout string `toml:"logout_timeout"`
}

// BudgetDuration returns Budget as a time.Duration.
func (c *SessionConfig) BudgetDuration() time.Duration {
	d, _ := time.ParseDuration(c.Budget)
	return d
}

// LoginBackoffDuration returns LoginBackoff as a time.Duration.
func (c *SessionConfig) LoginBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.LoginBackoff)
	return d
}

// SettleDelayDuration returns SettleDelay as a time.Duration.
func (c *SessionConfig) SettleDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.SettleDelay)
	return d
}

// LogoutTimeoutDuration returns LogoutTimeout as a time.Duration.
func (c *SessionConfig) LogoutTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.LogoutTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *SessionConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *SessionConfig) Merge(overlay *SessionConfig) {
	if overlay.Budget != "" {
		c.Budget = overlay.Budget
	}
	if overlay.LoginAttempts != 0 {
		c.LoginAttempts = overlay.LoginAttempts
	}
	if overlay.LoginBackoff != "" {
		c.LoginBackoff = overlay.LoginBackoff
	}
	if overlay.SettleDelay != "" {
		c.SettleDelay = overlay.SettleDelay
	}
	if overlay.LogoutTimeout != "" {
		c.LogoutTimeout = overlay.LogoutTimeout
	}
}

func (c *SessionConfig) loadDefaults() {
	if c.Budget == "" {
		c.Budget = "25m"
	}
	if c.LoginAttempts == 0 {
		c.LoginAttempts = 3
	}
	if c.LoginBackoff == "" {
		c.LoginBackoff = "10s"
	}
	if c.SettleDelay == "" {
		c.SettleDelay = "5s"
	}
	if c.LogoutTimeout == "" {
		c.LogoutTimeout = "10s"
	}
}

func (c *SessionConfig) loadEnv() {
	if v := os.Getenv(EnvSessionBudget); v != "" {
		c.Budget = v
	}
	if v := os.Getenv(EnvSessionLoginAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LoginAttempts = n
		}
	}
	if v := os.Getenv(EnvSessionLoginBackoff); v != "" {
		c.LoginBackoff = v
	}
	if v := os.Getenv(EnvSessionSettleDelay); v != "" {
		c.SettleDelay = v
	}
	if v := os.Getenv(EnvSessionLogoutTimeout); v != "" {
		c.LogoutTimeout = v
	}
}

func (c *SessionConfig) validate() error {
	if c.LoginAttempts < 1 {
		return fmt.Errorf("login_attempts must be at least 1")
	}
	for name, value := range map[string]string{
		"budget":         c.Budget,
		"login_backoff":  c.LoginBackoff,
		"settle_delay":   c.SettleDelay,
		"logout_timeout": c.LogoutTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}
