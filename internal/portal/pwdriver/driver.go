// Package pwdriver binds the portal driver contract to playwright over an
// externally launched Chrome instance. Nothing outside this package imports
// playwright.
package pwdriver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/onenotify/onenotify/internal/portal"
)

// mapErr rewrites driver timeouts into the portal sentinel so callers can
// classify without knowing playwright.
func mapErr(err error) error {
	if err == nil {
		return nil
	}

	var pwErr *playwright.Error
	if errors.As(err, &pwErr) && pwErr.Name == "TimeoutError" {
		return fmt.Errorf("%w: %s", portal.ErrTimeout, pwErr.Message)
	}
	if strings.Contains(err.Error(), "Timeout") {
		return fmt.Errorf("%w: %v", portal.ErrTimeout, err)
	}
	return err
}

func pwTimeout(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

type browser struct {
	pw  *playwright.Playwright
	b   playwright.Browser
	ctx playwright.BrowserContext
}

func (w *browser) NewPage() (portal.Page, error) {
	p, err := w.ctx.NewPage()
	if err != nil {
		return nil, mapErr(err)
	}
	return &page{p: p}, nil
}

// Close disconnects from the browser and stops the playwright driver. The
// Chrome process itself is owned by the ProcessHandle.
func (w *browser) Close() error {
	err := w.b.Close()
	if stopErr := w.pw.Stop(); err == nil {
		err = stopErr
	}
	return mapErr(err)
}

func (w *browser) IsConnected() bool {
	return w.b.IsConnected()
}

type page struct {
	p playwright.Page
}

func (p *page) Goto(url string, timeout time.Duration) error {
	_, err := p.p.Goto(url, playwright.PageGotoOptions{
		Timeout:   pwTimeout(timeout),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return mapErr(err)
}

func (p *page) GoBack() error {
	_, err := p.p.GoBack()
	return mapErr(err)
}

func (p *page) URL() string {
	return p.p.URL()
}

func (p *page) WaitForLoadState(state portal.LoadState, timeout time.Duration) error {
	var pwState *playwright.LoadState
	switch state {
	case portal.LoadNetworkIdle:
		pwState = playwright.LoadStateNetworkidle
	default:
		pwState = playwright.LoadStateDomcontentloaded
	}

	return mapErr(p.p.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   pwState,
		Timeout: pwTimeout(timeout),
	}))
}

func (p *page) Locator(selector string) portal.Locator {
	return &locator{l: p.p.Locator(selector)}
}

func (p *page) ExpectDownload(trigger func() error, timeout time.Duration) (portal.Download, error) {
	d, err := p.p.ExpectDownload(trigger, playwright.PageExpectDownloadOptions{
		Timeout: pwTimeout(timeout),
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &download{d: d}, nil
}

func (p *page) Close() error {
	return mapErr(p.p.Close())
}

func (p *page) IsClosed() bool {
	return p.p.IsClosed()
}

type locator struct {
	l playwright.Locator
}

func (l *locator) Locator(selector string) portal.Locator {
	return &locator{l: l.l.Locator(selector)}
}

func (l *locator) First() portal.Locator {
	return &locator{l: l.l.First()}
}

func (l *locator) Nth(i int) portal.Locator {
	return &locator{l: l.l.Nth(i)}
}

func (l *locator) All() ([]portal.Locator, error) {
	ls, err := l.l.All()
	if err != nil {
		return nil, mapErr(err)
	}

	out := make([]portal.Locator, len(ls))
	for i, el := range ls {
		out[i] = &locator{l: el}
	}
	return out, nil
}

func (l *locator) Count() (int, error) {
	n, err := l.l.Count()
	return n, mapErr(err)
}

func (l *locator) Click() error {
	return mapErr(l.l.Click())
}

func (l *locator) Check() error {
	return mapErr(l.l.Check())
}

func (l *locator) IsChecked() (bool, error) {
	checked, err := l.l.IsChecked()
	return checked, mapErr(err)
}

func (l *locator) InnerText() (string, error) {
	text, err := l.l.InnerText()
	return text, mapErr(err)
}

// Attribute honors the portal contract that an absent attribute is an
// error: playwright renders absence as an empty string, so presence is
// re-checked in the page.
func (l *locator) Attribute(name string) (string, error) {
	value, err := l.l.GetAttribute(name)
	if err != nil {
		return "", mapErr(err)
	}
	if value != "" {
		return value, nil
	}

	present, err := l.l.Evaluate("(el, name) => el.hasAttribute(name)", name)
	if err != nil {
		return "", mapErr(err)
	}
	if b, ok := present.(bool); ok && b {
		return "", nil
	}
	return "", fmt.Errorf("attribute %q not present", name)
}

func (l *locator) WaitFor(state portal.WaitState, timeout time.Duration) error {
	var pwState *playwright.WaitForSelectorState
	switch state {
	case portal.StateHidden:
		pwState = playwright.WaitForSelectorStateHidden
	default:
		pwState = playwright.WaitForSelectorStateVisible
	}

	return mapErr(l.l.WaitFor(playwright.LocatorWaitForOptions{
		State:   pwState,
		Timeout: pwTimeout(timeout),
	}))
}

type download struct {
	d playwright.Download
}

func (d *download) SuggestedFilename() string {
	return d.d.SuggestedFilename()
}

func (d *download) SaveAs(path string) error {
	return mapErr(d.d.SaveAs(path))
}
