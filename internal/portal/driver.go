// Package portal defines the contract between the automation stages and the
// browser driver. Stages depend only on these interfaces; the playwright
// binding lives in the pwdriver subpackage and test code substitutes fakes.
package portal

import (
	"context"
	"time"
)

// WaitState selects the element condition a WaitFor call targets.
type WaitState string

// Element wait states.
const (
	StateVisible WaitState = "visible"
	StateHidden  WaitState = "hidden"
)

// LoadState selects the page condition a WaitForLoadState call targets.
type LoadState string

// Page load states.
const (
	LoadDOMContentLoaded LoadState = "domcontentloaded"
	LoadNetworkIdle      LoadState = "networkidle"
)

// Browser is a connected browser instance.
type Browser interface {
	// NewPage opens a new tab in the authenticated context.
	NewPage() (Page, error)
	Close() error
	IsConnected() bool
}

// Page is a single browser tab. Navigation and wait operations are blocking
// and time-boxed; a timeout surfaces as an error matching IsTimeout.
type Page interface {
	Goto(url string, timeout time.Duration) error
	GoBack() error
	URL() string
	WaitForLoadState(state LoadState, timeout time.Duration) error
	Locator(selector string) Locator
	// ExpectDownload runs trigger and waits for the download it starts.
	ExpectDownload(trigger func() error, timeout time.Duration) (Download, error)
	Close() error
	IsClosed() bool
}

// Locator addresses elements on a page. Locators are cheap handles; the
// lookup happens on each operation.
type Locator interface {
	Locator(selector string) Locator
	First() Locator
	Nth(i int) Locator
	All() ([]Locator, error)
	Count() (int, error)
	Click() error
	Check() error
	IsChecked() (bool, error)
	InnerText() (string, error)
	// Attribute returns the attribute's value; an absent attribute is an
	// error, so presence checks read the returned error.
	Attribute(name string) (string, error)
	WaitFor(state WaitState, timeout time.Duration) error
}

// Download is a completed or in-flight file download.
type Download interface {
	SuggestedFilename() string
	// SaveAs writes the downloaded file to path, blocking until complete.
	SaveAs(path string) error
}

// ProcessHandle abstracts the external browser OS process so the session
// manager never branches on platform.
type ProcessHandle interface {
	Terminate() error
	Alive() bool
}

// Handle bundles everything a login produces: the connected browser, an
// authenticated page, and the OS process reference for forced termination.
type Handle struct {
	Browser Browser
	Page    Page
	Process ProcessHandle
}

// LoginFlow performs the out-of-band SSO handshake and returns a working
// authenticated handle, or an error after its own internal retries.
type LoginFlow interface {
	Login(ctx context.Context) (*Handle, error)
}
