package tasks

import "context"

// System defines the public contract of the durable task store. All
// mutations are individually atomic; no higher-level lock is taken.
type System interface {
	// Enqueue inserts scraped records, silently absorbing duplicates of the
	// (NPJ, type, date) uniqueness constraint. Records failing validation
	// are quarantined with StatusErrorValidation instead of entering the
	// queue. Returns the number of newly queued rows.
	Enqueue(ctx context.Context, records []NotificationRecord) (int, error)

	// ClaimBatch atomically flips up to limit pending groups to
	// StatusInProgress and returns them, ordered by notification date.
	ClaimBatch(ctx context.Context, limit int) ([]TaskGroup, error)

	// Complete transitions a group InProgress → Processed, storing the
	// result payload and assignee. Rows not InProgress are left untouched.
	Complete(ctx context.Context, group TaskGroup, result Result, assigneeID *int64) error

	// Fail transitions a group InProgress → the error status selected by
	// kind, incrementing the attempt count and escalating to
	// RequiresAttention at the configured ceiling.
	Fail(ctx context.Context, group TaskGroup, reason string, kind ErrorKind) error

	// CountPending returns the number of distinct pending groups.
	CountPending(ctx context.Context) (int, error)

	// ProcessedNPJs returns the distinct case identifiers with processed
	// notifications, sorted. Feeds the acknowledgement-only pass that clears
	// source notifications re-presented for already-handled cases.
	ProcessedNPJs(ctx context.Context) ([]string, error)

	// ResetStale returns crashed work to the queue: InProgress plus the
	// transient error statuses go back to Pending, attempt counts kept.
	// Permanent, validation, attention, and archived rows are never touched.
	ResetStale(ctx context.Context) (int, error)

	// Archive closes all processed notifications of an NPJ; Unarchive
	// reverses it. Administrative writes used by triage staff.
	Archive(ctx context.Context, npj string) (int, error)
	Unarchive(ctx context.Context, npj string) (int, error)
}
