package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvPortalBaseURL       = "ONENOTIFY_PORTAL_BASE_URL"
	EnvPortalCDPEndpoint   = "ONENOTIFY_PORTAL_CDP_ENDPOINT"
	EnvPortalChromeCommand = "ONENOTIFY_PORTAL_CHROME_COMMAND"
	EnvPortalNavTimeout    = "ONENOTIFY_PORTAL_NAV_TIMEOUT"
	EnvPortalCDPAttempts   = "ONENOTIFY_PORTAL_CDP_ATTEMPTS"
)

// Category is one configured notification category: its exact display name
// in the portal's subtype table and the list columns the scraper reads.
type Category struct {
	Name    string   `toml:"name"`
	Columns []string `toml:"columns"`
}

// PortalConfig holds portal endpoints, browser bootstrap parameters, and the
// notification categories the extraction stage walks.
type PortalConfig struct {
	BaseURL       string     `toml:"base_url"`
	CDPEndpoint   string     `toml:"cdp_endpoint"`
	ChromeCommand string     `toml:"chrome_command"`
	ExtensionURL  string     `toml:"extension_url"`
	CDPAttempts   int        `toml:"cdp_attempts"`
	CDPRetryDelay string     `toml:"cdp_retry_delay"`
	NavTimeout    string     `toml:"nav_timeout"`
	Categories    []Category `toml:"categories"`
}

// NotificationCenterURL returns the portal's notification center address.
func (c *PortalConfig) NotificationCenterURL() string {
	return c.BaseURL + "/paj/app/paj-central-notificacoes/spas/central-notificacoes/central-notificacoes.app.html"
}

// HomeURL returns the portal landing page, used for the controlled logout.
func (c *PortalConfig) HomeURL() string {
	return c.BaseURL + "/paj/juridico"
}

// DetailURL returns the case detail address for the given URL path id and
// variation. The detail page is directly addressable; no search step needed.
func (c *PortalConfig) DetailURL(pathID string, variation int) string {
	return fmt.Sprintf(
		"%s/paj/app/paj-cadastro/spas/processo/consulta/processo-consulta.app.html#/editar/%s/%d/1",
		c.BaseURL, pathID, variation,
	)
}

// NavTimeoutDuration returns NavTimeout as a time.Duration.
func (c *PortalConfig) NavTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.NavTimeout)
	return d
}

// CDPRetryDelayDuration returns CDPRetryDelay as a time.Duration.
func (c *PortalConfig) CDPRetryDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.CDPRetryDelay)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PortalConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PortalConfig) Merge(overlay *PortalConfig) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.CDPEndpoint != "" {
		c.CDPEndpoint = overlay.CDPEndpoint
	}
	if overlay.ChromeCommand != "" {
		c.ChromeCommand = overlay.ChromeCommand
	}
	if overlay.ExtensionURL != "" {
		c.ExtensionURL = overlay.ExtensionURL
	}
	if overlay.CDPAttempts != 0 {
		c.CDPAttempts = overlay.CDPAttempts
	}
	if overlay.CDPRetryDelay != "" {
		c.CDPRetryDelay = overlay.CDPRetryDelay
	}
	if overlay.NavTimeout != "" {
		c.NavTimeout = overlay.NavTimeout
	}
	if len(overlay.Categories) > 0 {
		c.Categories = overlay.Categories
	}
}

var defaultColumns = []string{"NPJ", "Adverso Principal", "Gerada em", "Qtd Dias Gerada"}

func (c *PortalConfig) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://juridico.bb.com.br"
	}
	if c.CDPEndpoint == "" {
		c.CDPEndpoint = "http://localhost:9222"
	}
	if c.ChromeCommand == "" {
		c.ChromeCommand = "./abrir_chrome.sh"
	}
	if c.ExtensionURL == "" {
		c.ExtensionURL = "chrome-extension://lnidijeaekolpfeckelhkomndglcglhh/index.html"
	}
	if c.CDPAttempts == 0 {
		c.CDPAttempts = 20
	}
	if c.CDPRetryDelay == "" {
		c.CDPRetryDelay = "2s"
	}
	if c.NavTimeout == "" {
		c.NavTimeout = "60s"
	}
	if len(c.Categories) == 0 {
		c.Categories = []Category{
			{Name: "Andamento de publicação em processo de condução terceirizada", Columns: defaultColumns},
			{Name: "Doc. anexado por empresa externa em processo terceirizado", Columns: defaultColumns},
			{Name: "Inclusão de Documentos no NPJ", Columns: defaultColumns},
		}
	}
}

func (c *PortalConfig) loadEnv() {
	if v := os.Getenv(EnvPortalBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvPortalCDPEndpoint); v != "" {
		c.CDPEndpoint = v
	}
	if v := os.Getenv(EnvPortalChromeCommand); v != "" {
		c.ChromeCommand = v
	}
	if v := os.Getenv(EnvPortalNavTimeout); v != "" {
		c.NavTimeout = v
	}
	if v := os.Getenv(EnvPortalCDPAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CDPAttempts = n
		}
	}
}

func (c *PortalConfig) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url required")
	}
	if c.CDPAttempts < 1 {
		return fmt.Errorf("cdp_attempts must be at least 1")
	}
	if _, err := time.ParseDuration(c.NavTimeout); err != nil {
		return fmt.Errorf("invalid nav_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.CDPRetryDelay); err != nil {
		return fmt.Errorf("invalid cdp_retry_delay: %w", err)
	}
	for i, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("categories[%d]: name required", i)
		}
	}
	return nil
}
