package extraction

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/onenotify/onenotify/internal/config"
	"github.com/onenotify/onenotify/internal/portal"
	"github.com/onenotify/onenotify/internal/tasks"
	"github.com/onenotify/onenotify/pkg/formatting"
)

var trailingCount = regexp.MustCompile(`(\d+)\s*$`)

// columns holds the resolved header indices of one category's list table.
// Absent columns stay -1.
type columns struct {
	npj       int
	adverse   int
	generated int
	age       int
}

func (s *Stage) processCategory(ctx context.Context, page portal.Page, cat config.Category, touched map[string]struct{}) (Stats, error) {
	var stats Stats

	pending, found, err := s.openCategory(page, cat.Name)
	if err != nil {
		return stats, err
	}
	if !found {
		s.logger.Info("category not present, skipping", "category", cat.Name)
		return stats, nil
	}
	if pending == 0 {
		s.logger.Info("category empty, skipping", "category", cat.Name)
		return stats, nil
	}

	cols, err := s.readColumns(page)
	if err != nil {
		return stats, err
	}

	records, marked, err := s.scrapePages(ctx, page, cat, cols)
	stats.Captured = len(records)
	if err != nil {
		return stats, err
	}
	if len(records) == 0 {
		return stats, nil
	}

	for _, rec := range records {
		touched[rec.NPJ] = struct{}{}
	}

	// store first, acknowledge second: a crash between the two re-presents
	// the rows next run and the dedup constraint absorbs them
	saved, err := s.store.Enqueue(ctx, records)
	if err != nil {
		return stats, fmt.Errorf("store category %s: %w", cat.Name, err)
	}
	stats.Saved = saved

	if marked > 0 {
		if err := s.confirm(page); err != nil {
			return stats, fmt.Errorf("confirm category %s: %w", cat.Name, err)
		}
		stats.Acknowledged = marked
	}

	s.logger.Info("category processed",
		"category", cat.Name,
		"captured", stats.Captured,
		"saved", stats.Saved,
		"acknowledged", stats.Acknowledged,
	)
	return stats, nil
}

// openCategory locates the category row by display name, reads its pending
// count, and clicks through when there is work. Returns found=false when the
// portal does not list the category at all.
func (s *Stage) openCategory(page portal.Page, name string) (int, bool, error) {
	rows, err := page.Locator(categoryRowSelector).All()
	if err != nil {
		return 0, false, fmt.Errorf("list categories: %w", err)
	}

	for _, row := range rows {
		text, err := row.InnerText()
		if err != nil {
			continue
		}
		if !strings.Contains(text, name) {
			continue
		}

		count := 0
		if m := trailingCount.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
			count, _ = strconv.Atoi(m[1])
		}
		if count == 0 {
			return 0, true, nil
		}

		if err := row.Click(); err != nil {
			return 0, true, fmt.Errorf("open category: %w", err)
		}
		s.waitAjax(page)

		first := page.Locator(listRowSelector).First()
		if err := first.WaitFor(portal.StateVisible, s.config.NavTimeoutDuration()); err != nil {
			return 0, true, fmt.Errorf("notification list did not load: %w", err)
		}
		return count, true, nil
	}

	return 0, false, nil
}

func (s *Stage) readColumns(page portal.Page) (columns, error) {
	cols := columns{npj: -1, adverse: -1, generated: -1, age: -1}

	headers, err := page.Locator(listHeaderSelector).All()
	if err != nil {
		return cols, fmt.Errorf("read list headers: %w", err)
	}

	for i, h := range headers {
		text, err := h.InnerText()
		if err != nil {
			continue
		}
		switch strings.TrimSpace(text) {
		case colNPJ:
			cols.npj = i
		case colAdverse:
			cols.adverse = i
		case colGenerated:
			cols.generated = i
		case colAge:
			cols.age = i
		}
	}

	if cols.npj == -1 {
		return cols, fmt.Errorf("list table has no %s column", colNPJ)
	}
	return cols, nil
}

// scrapePages walks every page of the open category, collecting records and
// marking each row's acknowledgement checkbox. Marks survive pagination; the
// single confirmation happens after the records are stored.
func (s *Stage) scrapePages(ctx context.Context, page portal.Page, cat config.Category, cols columns) ([]tasks.NotificationRecord, int, error) {
	var records []tasks.NotificationRecord
	marked := 0

	for {
		if err := ctx.Err(); err != nil {
			return records, marked, err
		}

		rows, err := page.Locator(listRowSelector).All()
		if err != nil {
			return records, marked, fmt.Errorf("read rows: %w", err)
		}

		for _, row := range rows {
			rec, err := s.buildRecord(row, cat, cols)
			if err != nil {
				s.logger.Warn("unreadable row skipped", "category", cat.Name, "error", err)
				continue
			}
			records = append(records, rec)

			if err := row.Locator(checkboxSelector).First().Check(); err != nil {
				s.logger.Warn("checkbox mark failed",
					"category", cat.Name,
					"npj", rec.NPJ,
					"error", err,
				)
				continue
			}
			marked++
		}

		next := page.Locator(nextPageSelector).First()
		if n, err := next.Count(); err != nil || n == 0 {
			break
		}
		if _, err := next.Attribute("disabled"); err == nil {
			break
		}
		if err := next.Click(); err != nil {
			return records, marked, fmt.Errorf("next page: %w", err)
		}
		s.waitAjax(page)
	}

	return records, marked, nil
}

func (s *Stage) buildRecord(row portal.Locator, cat config.Category, cols columns) (tasks.NotificationRecord, error) {
	cells, err := row.Locator("td").All()
	if err != nil {
		return tasks.NotificationRecord{}, err
	}

	cell := func(i int) string {
		if i < 0 || i >= len(cells) {
			return ""
		}
		text, err := cells[i].InnerText()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(text)
	}

	npj := cell(cols.npj)
	if npj == "" {
		return tasks.NotificationRecord{}, fmt.Errorf("row has empty %s cell", colNPJ)
	}

	return tasks.NotificationRecord{
		NPJ:          npj,
		Type:         cat.Name,
		AdverseParty: cell(cols.adverse),
		Date:         s.resolveDate(cell(cols.generated), cell(cols.age)),
	}, nil
}

// resolveDate normalizes the notification date: the "Gerada em" cell when it
// parses (its time-of-day suffix dropped), otherwise today minus the age the
// "Qtd Dias Gerada" cell reports. Anything else passes through unchanged and
// is quarantined by record validation downstream.
func (s *Stage) resolveDate(generated, age string) string {
	if t, err := formatting.ParseDate(generated); err == nil {
		return formatting.FormatDate(t)
	}
	if n, err := strconv.Atoi(strings.TrimSpace(age)); err == nil && n >= 0 {
		return formatting.FormatDate(s.now().AddDate(0, 0, -n))
	}
	return strings.TrimSpace(generated)
}

// confirm clicks the category's acknowledgement button and accepts the
// confirmation dialog when one appears.
func (s *Stage) confirm(page portal.Page) error {
	if err := page.Locator(confirmSelector).First().Click(); err != nil {
		return err
	}

	yes := page.Locator(dialogYesSelector).First()
	if n, err := yes.Count(); err == nil && n > 0 {
		if err := yes.Click(); err != nil {
			return err
		}
	}

	s.waitAjax(page)
	return nil
}

// acknowledgeCategory marks only rows whose NPJ is in set, then confirms.
func (s *Stage) acknowledgeCategory(page portal.Page, cat config.Category, set map[string]struct{}) (int, error) {
	pending, found, err := s.openCategory(page, cat.Name)
	if err != nil || !found || pending == 0 {
		return 0, err
	}

	cols, err := s.readColumns(page)
	if err != nil {
		return 0, err
	}

	marked := 0
	for {
		rows, err := page.Locator(listRowSelector).All()
		if err != nil {
			return marked, fmt.Errorf("read rows: %w", err)
		}

		for _, row := range rows {
			cells, err := row.Locator("td").All()
			if err != nil || cols.npj >= len(cells) {
				continue
			}
			npj, err := cells[cols.npj].InnerText()
			if err != nil {
				continue
			}
			if _, ok := set[strings.TrimSpace(npj)]; !ok {
				continue
			}
			if err := row.Locator(checkboxSelector).First().Check(); err != nil {
				continue
			}
			marked++
		}

		next := page.Locator(nextPageSelector).First()
		if n, err := next.Count(); err != nil || n == 0 {
			break
		}
		if _, err := next.Attribute("disabled"); err == nil {
			break
		}
		if err := next.Click(); err != nil {
			return marked, fmt.Errorf("next page: %w", err)
		}
		s.waitAjax(page)
	}

	if marked > 0 {
		if err := s.confirm(page); err != nil {
			return marked, err
		}
	}
	return marked, nil
}
