package details

import (
	"context"
	"fmt"
	"strings"

	"github.com/onenotify/onenotify/internal/portal"
	"github.com/onenotify/onenotify/internal/session"
	"github.com/onenotify/onenotify/internal/tasks"
	"github.com/onenotify/onenotify/pkg/formatting"
)

// Case detail page selectors.
const (
	detailSentinelSelector = "div[name='dadosProcesso']"
	processNumberSelector  = "span[name='numeroProcessoJudicial']"
	poloSelector           = "span[name='poloBanco']"

	docketRowSelector    = "table[name='tabelaAndamentos'] tbody tr"
	docketPanelSelector  = "div[name='detalheAndamento']"
	docketBodySelector   = "div[name='detalheAndamento'] p"
	readMoreSelector     = "a:has-text('Leia mais')"
	panelCloseSelector   = "div[name='detalheAndamento'] button[aria-label='Fechar']"
	errorBannerSelector  = ".mensagem-erro"
	documentRowSelector  = "table[name='tabelaDocumentos'] tbody tr"
	downloadLinkSelector = "a[name='baixarDocumento']"
)

// publicationMarker identifies docket entries whose full text lives behind
// the detail panel.
const publicationMarker = "PUBLICA"

func (s *Stage) processGroup(ctx context.Context, page portal.Page, group tasks.TaskGroup) (tasks.Result, error) {
	var result tasks.Result

	npj, err := formatting.ParseNPJ(group.NPJ)
	if err != nil {
		return result, fmt.Errorf("case identifier: %w", err)
	}

	if err := s.openDetail(page, npj); err != nil {
		return result, err
	}

	result.ProcessNumber = s.readText(page, processNumberSelector)
	result.Polo = s.readText(page, poloSelector)

	window := formatting.DateWindow(group.NotificationDate, s.proc.WindowDays)
	inWindow := make(map[string]struct{}, len(window))
	for _, d := range window {
		inWindow[d] = struct{}{}
	}

	entries, err := s.captureDocket(ctx, page, inWindow)
	if err != nil {
		return result, err
	}
	result.DocketEntries = entries

	documents, err := s.downloadDocuments(ctx, page, npj, inWindow)
	if err != nil {
		return result, err
	}
	result.Documents = documents

	s.logger.Info("case captured",
		"npj", group.NPJ,
		"docket", len(entries),
		"documents", len(documents),
	)
	return result, nil
}

// openDetail navigates to the case's directly addressable detail page. A
// timeout on an authenticated page means the portal silently bounced the
// session, so it surfaces as session expiry rather than a task fault.
func (s *Stage) openDetail(page portal.Page, npj formatting.NPJ) error {
	url := s.portal.DetailURL(npj.PathID(), npj.Variation)
	nav := s.portal.NavTimeoutDuration()

	if err := page.Goto(url, nav); err != nil {
		if portal.IsTimeout(err) {
			return fmt.Errorf("%w: detail page navigation: %v", session.ErrExpired, err)
		}
		return fmt.Errorf("open detail page: %w", err)
	}

	sentinel := page.Locator(detailSentinelSelector).First()
	if err := sentinel.WaitFor(portal.StateVisible, nav); err != nil {
		if portal.IsTimeout(err) {
			return fmt.Errorf("%w: detail page did not render: %v", session.ErrExpired, err)
		}
		return fmt.Errorf("detail page sentinel: %w", err)
	}
	return nil
}

// readText reads a single field best-effort; missing fields come back empty
// rather than failing the task.
func (s *Stage) readText(page portal.Page, selector string) string {
	loc := page.Locator(selector).First()
	if n, err := loc.Count(); err != nil || n == 0 {
		return ""
	}
	text, err := loc.InnerText()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// captureDocket reads the case timeline and keeps entries dated within the
// window. Publication entries carry their body text behind a detail panel
// that is opened, read, and closed per entry.
func (s *Stage) captureDocket(ctx context.Context, page portal.Page, inWindow map[string]struct{}) ([]tasks.DocketEntry, error) {
	rows, err := page.Locator(docketRowSelector).All()
	if err != nil {
		return nil, fmt.Errorf("read docket rows: %w", err)
	}

	var entries []tasks.DocketEntry
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return entries, err
		}

		cells, err := row.Locator("td").All()
		if err != nil || len(cells) < 2 {
			continue
		}

		rawDate, err := cells[0].InnerText()
		if err != nil {
			continue
		}
		parsed, err := formatting.ParseDate(rawDate)
		if err != nil {
			continue
		}
		date := formatting.FormatDate(parsed)
		if _, ok := inWindow[date]; !ok {
			continue
		}

		entryType, err := cells[1].InnerText()
		if err != nil {
			continue
		}
		entryType = strings.TrimSpace(entryType)

		entry := tasks.DocketEntry{Date: date, Type: entryType}
		if strings.Contains(strings.ToUpper(entryType), publicationMarker) {
			if text, err := s.readPublication(page, row); err != nil {
				s.logger.Warn("publication text capture failed",
					"date", date,
					"error", err,
				)
			} else if text != "" {
				entry.Text = &text
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// readPublication opens the entry's detail panel, expands the truncated
// body when a "read more" link is present, captures the text, and closes the
// panel, waiting for it to disappear so the next row click lands on the
// timeline and not on a stale overlay.
func (s *Stage) readPublication(page portal.Page, row portal.Locator) (string, error) {
	nav := s.portal.NavTimeoutDuration()

	if err := row.Click(); err != nil {
		return "", fmt.Errorf("open publication panel: %w", err)
	}

	panel := page.Locator(docketPanelSelector).First()
	if err := panel.WaitFor(portal.StateVisible, nav); err != nil {
		return "", fmt.Errorf("publication panel did not open: %w", err)
	}

	more := page.Locator(readMoreSelector).First()
	if n, err := more.Count(); err == nil && n > 0 {
		if err := more.Click(); err != nil {
			s.logger.Debug("read-more expand failed", "error", err)
		}
	}

	text, err := page.Locator(docketBodySelector).First().InnerText()
	if err != nil {
		text = ""
	}

	if err := page.Locator(panelCloseSelector).First().Click(); err != nil {
		return "", fmt.Errorf("close publication panel: %w", err)
	}
	if err := panel.WaitFor(portal.StateHidden, nav); err != nil {
		return "", fmt.Errorf("publication panel did not close: %w", err)
	}

	return strings.TrimSpace(text), nil
}

// downloadDocuments saves every case document dated within the window. A
// failed download fails the task: the portal distinguishes its document
// backend being down (transient, retryable later) from everything else.
func (s *Stage) downloadDocuments(ctx context.Context, page portal.Page, npj formatting.NPJ, inWindow map[string]struct{}) ([]tasks.DocumentFile, error) {
	rows, err := page.Locator(documentRowSelector).All()
	if err != nil {
		return nil, fmt.Errorf("read document rows: %w", err)
	}

	var documents []tasks.DocumentFile
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return documents, err
		}

		cells, err := row.Locator("td").All()
		if err != nil || len(cells) < 1 {
			continue
		}

		rawDate, err := cells[0].InnerText()
		if err != nil {
			continue
		}
		parsed, err := formatting.ParseDate(rawDate)
		if err != nil {
			continue
		}
		date := formatting.FormatDate(parsed)
		if _, ok := inWindow[date]; !ok {
			continue
		}

		doc, err := s.downloadOne(page, row, npj, date)
		if err != nil {
			return documents, err
		}
		documents = append(documents, doc)
	}

	return documents, nil
}

func (s *Stage) downloadOne(page portal.Page, row portal.Locator, npj formatting.NPJ, date string) (tasks.DocumentFile, error) {
	link := row.Locator(downloadLinkSelector).First()

	download, err := page.ExpectDownload(link.Click, s.proc.DownloadTimeoutDuration())
	if err != nil {
		if banner := s.readText(page, errorBannerSelector); portal.MatchesDocumentStoreError(banner) {
			return tasks.DocumentFile{}, fmt.Errorf("%w: %s", portal.ErrDocumentStoreUnavailable, banner)
		}
		return tasks.DocumentFile{}, fmt.Errorf("download document: %w", err)
	}

	saved, err := s.docs.Store(npj, download.SuggestedFilename(), download.SaveAs)
	if err != nil {
		return tasks.DocumentFile{}, fmt.Errorf("save document: %w", err)
	}

	return tasks.DocumentFile{
		Date:         date,
		Filename:     saved.Filename,
		RelativePath: saved.RelativePath,
		SizeBytes:    saved.SizeBytes,
		PageCount:    saved.PageCount,
	}, nil
}
