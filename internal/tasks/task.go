// Package tasks implements the durable task store for notification
// processing. It provides types, data access, and the claim/complete/fail
// state machine over the notifications table.
package tasks

import (
	"time"

	"github.com/onenotify/onenotify/pkg/formatting"
)

// Status is the processing state of a notification row. Claiming and
// completion operate on (NPJ, notification date) groups: every row of a
// group moves together.
type Status string

// Notification statuses.
const (
	StatusPending           Status = "pending"
	StatusInProgress        Status = "in_progress"
	StatusProcessed         Status = "processed"
	StatusError             Status = "error"
	StatusErrorPortal       Status = "error_portal"
	StatusErrorPermanent    Status = "error_permanent"
	StatusErrorValidation   Status = "error_validation"
	StatusRequiresAttention Status = "requires_attention"
	StatusArchived          Status = "archived"
)

// ErrorKind classifies a processing failure and selects the error status a
// failing group transitions to.
type ErrorKind string

// Failure classifications.
const (
	// KindPortalTransient is a recognized failure signature from the source
	// system (e.g. its document store being down). Retryable.
	KindPortalTransient ErrorKind = "portal_transient"
	// KindAutomation is an unexpected selector or navigation failure.
	// Retryable.
	KindAutomation ErrorKind = "automation"
	// KindPermanent is a structurally unrecoverable failure (e.g. malformed
	// case identifier). Excluded from the reset-to-pending recovery path.
	KindPermanent ErrorKind = "permanent"
)

// FailureStatus returns the status a group moves to when failing with kind
// at the given post-increment attempt count. Retryable kinds escalate to
// RequiresAttention once the ceiling is reached; permanent failures never
// escalate because they are never retried.
func FailureStatus(kind ErrorKind, attempts, ceiling int) Status {
	if kind == KindPermanent {
		return StatusErrorPermanent
	}
	if attempts >= ceiling {
		return StatusRequiresAttention
	}
	if kind == KindPortalTransient {
		return StatusErrorPortal
	}
	return StatusError
}

// NotificationRecord is one scraped source notification, as captured by the
// extraction stage. Date carries the portal's dd/MM/yyyy rendering.
type NotificationRecord struct {
	NPJ          string
	Type         string
	AdverseParty string
	Date         string
}

// Validate reports whether the record can enter the processing queue.
// Records that fail validation are quarantined with StatusErrorValidation
// so they never corrupt date-window computation downstream.
func (r NotificationRecord) Validate() error {
	if _, err := formatting.ParseNPJ(r.NPJ); err != nil {
		return err
	}
	if _, err := formatting.ParseDate(r.Date); err != nil {
		return err
	}
	return nil
}

// TaskGroup is the claimable unit of work: all notifications of one NPJ
// sharing one notification date.
type TaskGroup struct {
	NPJ              string
	NotificationDate time.Time
}

// DocketEntry is one dated event captured from a case's detail timeline.
// Text is populated only for publication entries, whose full body is read
// from the detail panel.
type DocketEntry struct {
	Date string  `json:"date"`
	Type string  `json:"type"`
	Text *string `json:"text,omitempty"`
}

// DocumentFile describes one downloaded case document.
type DocumentFile struct {
	Date         string `json:"date"`
	Filename     string `json:"filename"`
	RelativePath string `json:"relative_path"`
	SizeBytes    int64  `json:"size_bytes"`
	PageCount    *int   `json:"page_count,omitempty"`
}

// Result is the payload persisted when a group completes.
type Result struct {
	ProcessNumber string
	Polo          string
	DocketEntries []DocketEntry
	Documents     []DocumentFile
}
