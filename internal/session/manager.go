// Package session manages the authenticated portal session lifecycle: login
// with retries, proactive renewal before the server-side timeout, and
// teardown of the browser process.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onenotify/onenotify/internal/config"
	"github.com/onenotify/onenotify/internal/portal"
)

// Selectors for the portal's logout flow.
const (
	userMenuSelector   = "button[aria-label='Menu do usuário']"
	logoutItemSelector = "text=Sair"
)

// Session is one authenticated portal session. EnsureFresh may replace it
// entirely, so callers must adopt the returned session and re-read Page
// after every call.
type Session struct {
	handle   *portal.Handle
	openedAt time.Time
}

// Page returns the authenticated page of the current handle.
func (s *Session) Page() portal.Page {
	return s.handle.Page
}

// Browser returns the connected browser of the current handle.
func (s *Session) Browser() portal.Browser {
	return s.handle.Browser
}

// Manager opens, renews, and closes sessions against a login flow.
type Manager struct {
	flow   portal.LoginFlow
	config *config.SessionConfig
	logger *slog.Logger
	clock  func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a session manager wired to the real clock.
func New(flow portal.LoginFlow, cfg *config.SessionConfig, logger *slog.Logger) *Manager {
	return NewWithClock(flow, cfg, logger, time.Now)
}

// NewWithClock creates a session manager with an injectable clock.
func NewWithClock(flow portal.LoginFlow, cfg *config.SessionConfig, logger *slog.Logger, clock func() time.Time) *Manager {
	return &Manager{
		flow:   flow,
		config: cfg,
		logger: logger.With("system", "session"),
		clock:  clock,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Open establishes a session, retrying the login flow up to the configured
// attempt count with a fixed backoff. All attempts exhausted wraps
// ErrUnrecoverable.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	var lastErr error

	for attempt := 1; attempt <= m.config.LoginAttempts; attempt++ {
		handle, err := m.flow.Login(ctx)
		if err == nil {
			m.logger.Info("session established", "attempt", attempt)
			return &Session{handle: handle, openedAt: m.clock()}, nil
		}

		lastErr = err
		m.logger.Warn("login attempt failed",
			"attempt", attempt,
			"of", m.config.LoginAttempts,
			"error", err,
		)

		if attempt < m.config.LoginAttempts {
			if err := m.sleep(ctx, m.config.LoginBackoffDuration()); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v",
		ErrUnrecoverable, m.config.LoginAttempts, lastErr)
}

// Age returns how long the session has been open.
func (m *Manager) Age(s *Session) time.Duration {
	return m.clock().Sub(s.openedAt)
}

// Expired reports whether the session has outlived its renewal budget.
func (m *Manager) Expired(s *Session) bool {
	return m.Age(s) >= m.config.BudgetDuration()
}

// EnsureFresh renews the session when its budget has elapsed, or
// unconditionally when expired is set (used after the portal itself signals
// expiry). A fresh session is returned unchanged. Renewal is logout, process
// teardown, re-login, then a settle delay before the caller resumes
// navigation.
func (m *Manager) EnsureFresh(ctx context.Context, s *Session, expired bool) (*Session, error) {
	if !expired && !m.Expired(s) {
		return s, nil
	}

	m.logger.Info("renewing session",
		"age", m.Age(s).Round(time.Second),
		"forced", expired,
	)

	m.teardown(s)

	fresh, err := m.Open(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.sleep(ctx, m.config.SettleDelayDuration()); err != nil {
		m.Close(fresh)
		return nil, err
	}
	return fresh, nil
}

// Close tears the session down at end of run.
func (m *Manager) Close(s *Session) {
	if s == nil || s.handle == nil {
		return
	}
	m.teardown(s)
	s.handle = nil
}

// teardown logs out best-effort, then forcibly ends the browser process.
// Every step tolerates failure: a dead page must never block the forced
// process termination that actually frees the session server-side.
func (m *Manager) teardown(s *Session) {
	m.logout(s)

	if s.handle.Browser != nil && s.handle.Browser.IsConnected() {
		if err := s.handle.Browser.Close(); err != nil {
			m.logger.Warn("browser close failed", "error", err)
		}
	}

	if s.handle.Process != nil && s.handle.Process.Alive() {
		if err := s.handle.Process.Terminate(); err != nil {
			m.logger.Warn("browser process termination failed", "error", err)
		}
	}
}

func (m *Manager) logout(s *Session) {
	page := s.handle.Page
	if page == nil || page.IsClosed() {
		return
	}

	timeout := m.config.LogoutTimeoutDuration()

	menu := page.Locator(userMenuSelector)
	if err := menu.WaitFor(portal.StateVisible, timeout); err != nil {
		m.logger.Debug("logout menu not found, skipping logout", "error", err)
		return
	}
	if err := menu.Click(); err != nil {
		m.logger.Debug("logout menu click failed", "error", err)
		return
	}
	if err := page.Locator(logoutItemSelector).Click(); err != nil {
		m.logger.Debug("logout click failed", "error", err)
	}
}
