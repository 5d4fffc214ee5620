package pwdriver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/onenotify/onenotify/internal/config"
	"github.com/onenotify/onenotify/internal/portal"
)

// SSO extension selectors.
const (
	ssoEnterSelector = "button:has-text('Acessar')"
)

// LoginFlow implements portal.LoginFlow over an externally launched Chrome:
// it starts the browser bootstrap command, polls the CDP endpoint until the
// browser accepts connections, and drives the SSO extension click-through.
type LoginFlow struct {
	config *config.PortalConfig
	logger *slog.Logger
}

// NewLoginFlow creates a login flow.
func NewLoginFlow(cfg *config.PortalConfig, logger *slog.Logger) *LoginFlow {
	return &LoginFlow{
		config: cfg,
		logger: logger.With("system", "login"),
	}
}

// Login performs one full login attempt. On any failure the launched
// process is terminated so a retry starts clean.
func (f *LoginFlow) Login(ctx context.Context) (*portal.Handle, error) {
	proc, err := startProcess(f.config.ChromeCommand)
	if err != nil {
		return nil, err
	}

	handle, err := f.connect(ctx, proc)
	if err != nil {
		if termErr := proc.Terminate(); termErr != nil {
			f.logger.Warn("browser cleanup after failed login", "error", termErr)
		}
		return nil, err
	}
	return handle, nil
}

func (f *LoginFlow) connect(ctx context.Context, proc *process) (*portal.Handle, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start driver: %w", err)
	}

	b, err := f.connectCDP(ctx, pw)
	if err != nil {
		if stopErr := pw.Stop(); stopErr != nil {
			f.logger.Warn("driver stop after failed connect", "error", stopErr)
		}
		return nil, err
	}

	wrapped := &browser{pw: pw, b: b, ctx: firstContext(b)}

	p, err := f.authenticate(wrapped)
	if err != nil {
		if closeErr := wrapped.Close(); closeErr != nil {
			f.logger.Warn("browser close after failed login", "error", closeErr)
		}
		return nil, err
	}

	return &portal.Handle{
		Browser: wrapped,
		Page:    p,
		Process: proc,
	}, nil
}

// connectCDP polls the debugging endpoint until the freshly launched Chrome
// is ready to accept connections.
func (f *LoginFlow) connectCDP(ctx context.Context, pw *playwright.Playwright) (playwright.Browser, error) {
	var lastErr error

	for attempt := 1; attempt <= f.config.CDPAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b, err := pw.Chromium.ConnectOverCDP(f.config.CDPEndpoint)
		if err == nil {
			f.logger.Info("browser connected",
				"endpoint", f.config.CDPEndpoint,
				"attempt", attempt,
			)
			return b, nil
		}
		lastErr = err

		timer := time.NewTimer(f.config.CDPRetryDelayDuration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("connect browser at %s after %d attempts: %w",
		f.config.CDPEndpoint, f.config.CDPAttempts, lastErr)
}

func firstContext(b playwright.Browser) playwright.BrowserContext {
	if ctxs := b.Contexts(); len(ctxs) > 0 {
		return ctxs[0]
	}
	ctx, err := b.NewContext()
	if err != nil {
		return nil
	}
	return ctx
}

// authenticate opens the SSO extension page, clicks through, and waits for
// the authenticated portal home to render.
func (f *LoginFlow) authenticate(b portal.Browser) (portal.Page, error) {
	nav := f.config.NavTimeoutDuration()

	p, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	if err := p.Goto(f.config.ExtensionURL, nav); err != nil {
		return nil, fmt.Errorf("open sso extension: %w", err)
	}

	enter := p.Locator(ssoEnterSelector).First()
	if err := enter.WaitFor(portal.StateVisible, nav); err != nil {
		return nil, fmt.Errorf("sso entry button: %w", err)
	}
	if err := enter.Click(); err != nil {
		return nil, fmt.Errorf("sso click-through: %w", err)
	}

	if err := p.Goto(f.config.HomeURL(), nav); err != nil {
		return nil, fmt.Errorf("open portal home: %w", err)
	}
	if err := p.WaitForLoadState(portal.LoadNetworkIdle, nav); err != nil {
		return nil, fmt.Errorf("portal home did not settle: %w", err)
	}

	f.logger.Info("portal session authenticated")
	return p, nil
}
