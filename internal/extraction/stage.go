// Package extraction implements the notification capture stage: it walks the
// portal's notification center category by category, scrapes pending rows
// into durable records, and acknowledges them at the source only after they
// are safely stored.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/onenotify/onenotify/internal/config"
	"github.com/onenotify/onenotify/internal/portal"
	"github.com/onenotify/onenotify/internal/tasks"
)

// Notification center selectors.
const (
	categoryRowSelector = "table[name='tabelaTipoNotificacao'] tbody tr"
	listHeaderSelector  = "table[name='tabelaNotificacoes'] thead th"
	listRowSelector     = "table[name='tabelaNotificacoes'] tbody tr"
	checkboxSelector    = "input[type='checkbox']"
	nextPageSelector    = "button[aria-label='Próxima página']"
	confirmSelector     = "button:has-text('Dar ciência')"
	dialogYesSelector   = "button:has-text('Sim')"
	ajaxOverlaySelector = ".cssload-container"
)

// List column headers the scraper reads.
const (
	colNPJ       = "NPJ"
	colAdverse   = "Adverso Principal"
	colGenerated = "Gerada em"
	colAge       = "Qtd Dias Gerada"
)

// Stats accumulates what one extraction pass did.
type Stats struct {
	Captured     int
	Saved        int
	Acknowledged int
	// NPJs are the distinct case identifiers touched, sorted.
	NPJs []string
}

func (s *Stats) add(other Stats) {
	s.Captured += other.Captured
	s.Saved += other.Saved
	s.Acknowledged += other.Acknowledged
}

// Stage scrapes and acknowledges source notifications.
type Stage struct {
	store  tasks.System
	config *config.PortalConfig
	logger *slog.Logger
	now    func() time.Time
}

// New creates an extraction stage wired to the real clock.
func New(store tasks.System, cfg *config.PortalConfig, logger *slog.Logger) *Stage {
	return NewWithClock(store, cfg, logger, time.Now)
}

// NewWithClock creates an extraction stage with an injectable clock, used to
// resolve dates given only as an age in days.
func NewWithClock(store tasks.System, cfg *config.PortalConfig, logger *slog.Logger, clock func() time.Time) *Stage {
	return &Stage{
		store:  store,
		config: cfg,
		logger: logger.With("system", "extraction"),
		now:    clock,
	}
}

// Run executes one full extraction pass over every configured category.
// Failure to reach the notification center is stage-fatal; individual
// category failures are logged and skipped.
func (s *Stage) Run(ctx context.Context, page portal.Page) (Stats, error) {
	var stats Stats

	if err := s.openCenter(page); err != nil {
		return stats, err
	}

	touched := make(map[string]struct{})

	for _, cat := range s.config.Categories {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		catStats, err := s.processCategory(ctx, page, cat, touched)
		stats.add(catStats)
		if err != nil {
			s.logger.Warn("category failed, skipping",
				"category", cat.Name,
				"error", err,
			)
		}

		// re-anchor on the category list for the next iteration
		if err := s.openCenter(page); err != nil {
			return stats, err
		}
	}

	stats.NPJs = slices.Sorted(maps.Keys(touched))
	s.logger.Info("extraction pass finished",
		"captured", stats.Captured,
		"saved", stats.Saved,
		"acknowledged", stats.Acknowledged,
		"cases", len(stats.NPJs),
	)
	return stats, nil
}

// AcknowledgeProcessed walks the categories acknowledging only rows whose
// NPJ is in the given set, without storing anything. Used to clear source
// notifications for cases already processed through other channels.
func (s *Stage) AcknowledgeProcessed(ctx context.Context, page portal.Page, npjs []string) (int, error) {
	if len(npjs) == 0 {
		return 0, nil
	}

	set := make(map[string]struct{}, len(npjs))
	for _, npj := range npjs {
		set[npj] = struct{}{}
	}

	if err := s.openCenter(page); err != nil {
		return 0, err
	}

	total := 0
	for _, cat := range s.config.Categories {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := s.acknowledgeCategory(page, cat, set)
		total += n
		if err != nil {
			s.logger.Warn("category acknowledgement failed, skipping",
				"category", cat.Name,
				"error", err,
			)
		}

		if err := s.openCenter(page); err != nil {
			return total, err
		}
	}

	s.logger.Info("acknowledgement-only pass finished", "acknowledged", total)
	return total, nil
}

func (s *Stage) openCenter(page portal.Page) error {
	nav := s.config.NavTimeoutDuration()
	if err := page.Goto(s.config.NotificationCenterURL(), nav); err != nil {
		return fmt.Errorf("open notification center: %w", err)
	}
	s.waitAjax(page)
	return nil
}

// waitAjax blocks until the portal's loading overlay clears. Best effort: an
// overlay that never appeared looks identical to one that already cleared.
func (s *Stage) waitAjax(page portal.Page) {
	overlay := page.Locator(ajaxOverlaySelector).First()
	if err := overlay.WaitFor(portal.StateHidden, s.config.NavTimeoutDuration()); err != nil {
		s.logger.Debug("loading overlay wait failed", "error", err)
	}
}
