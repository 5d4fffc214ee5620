package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onenotify/onenotify/pkg/repository"
)

type repo struct {
	db          *sql.DB
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time
}

// New creates a task store implementing the System interface. maxAttempts is
// the retry ceiling after which failing groups escalate to RequiresAttention.
func New(db *sql.DB, logger *slog.Logger, maxAttempts int) System {
	return &repo{
		db:          db,
		logger:      logger.With("system", "tasks"),
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

const enqueueQuery = `
	INSERT INTO notifications (npj, notification_type, adverse_party, notification_date, status, last_error)
	VALUES ($1, $2, $3, to_date($4, 'DD/MM/YYYY'), $5, $6)
	ON CONFLICT (npj, notification_type, notification_date) DO NOTHING`

func (r *repo) Enqueue(ctx context.Context, records []NotificationRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	saved, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (int, error) {
		total := 0
		for _, rec := range records {
			if err := rec.Validate(); err != nil {
				if qErr := r.quarantine(ctx, tx, rec, err); qErr != nil {
					return 0, qErr
				}
				continue
			}

			n, err := repository.ExecCount(ctx, tx, enqueueQuery,
				rec.NPJ, rec.Type, rec.AdverseParty, rec.Date, StatusPending, nil)
			if err != nil {
				return 0, fmt.Errorf("enqueue %s: %w", rec.NPJ,
					repository.MapError(err, ErrGroupNotFound, ErrDuplicate))
			}
			total += n
		}
		return total, nil
	})
	if err != nil {
		return 0, err
	}

	if skipped := len(records) - saved; skipped > 0 {
		r.logger.Info("notifications enqueued", "saved", saved, "absorbed", skipped)
	} else {
		r.logger.Info("notifications enqueued", "saved", saved)
	}
	return saved, nil
}

// quarantine records a validation failure under the capture date so the bad
// row is visible to staff without ever reaching the processing queue.
func (r *repo) quarantine(ctx context.Context, tx *sql.Tx, rec NotificationRecord, cause error) error {
	r.logger.Warn("record failed validation",
		"npj", rec.NPJ,
		"date", rec.Date,
		"error", cause,
	)

	_, err := repository.ExecCount(ctx, tx, enqueueQuery,
		rec.NPJ, rec.Type, rec.AdverseParty, r.now().Format("02/01/2006"),
		StatusErrorValidation, cause.Error())
	if err != nil {
		return fmt.Errorf("quarantine %s: %w", rec.NPJ, err)
	}
	return nil
}

// claimQuery flips every pending row of up to $2 groups in one statement so
// a crash between select and update cannot lose or double-claim a group.
const claimQuery = `
	UPDATE notifications n
	SET status = $1
	FROM (
		SELECT DISTINCT npj, notification_date
		FROM notifications
		WHERE status = $3
		ORDER BY notification_date, npj
		LIMIT $2
	) c
	WHERE n.npj = c.npj
	  AND n.notification_date = c.notification_date
	  AND n.status = $3
	RETURNING n.npj, n.notification_date`

func (r *repo) ClaimBatch(ctx context.Context, limit int) ([]TaskGroup, error) {
	rows, err := repository.QueryMany(ctx, r.db, claimQuery,
		[]any{StatusInProgress, limit, StatusPending}, scanGroup)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}

	groups := DistinctGroups(rows)
	r.logger.Info("batch claimed", "groups", len(groups), "rows", len(rows))
	return groups, nil
}

const completeQuery = `
	UPDATE notifications
	SET status = $1,
	    process_number = $2,
	    polo = $3,
	    docket_entries = $4,
	    documents = $5,
	    assignee_id = $6,
	    last_error = NULL,
	    processed_at = now()
	WHERE npj = $7 AND notification_date = $8 AND status = $9`

func (r *repo) Complete(ctx context.Context, group TaskGroup, result Result, assigneeID *int64) error {
	docket, documents, err := marshalResult(result)
	if err != nil {
		return fmt.Errorf("encode result for %s: %w", group.NPJ, err)
	}

	err = repository.ExecExpectOne(ctx, r.db, completeQuery,
		StatusProcessed, result.ProcessNumber, result.Polo, docket, documents,
		assigneeID, group.NPJ, group.NotificationDate, StatusInProgress)
	if err = repository.MapError(err, ErrGroupNotFound, ErrDuplicate); err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			// group was not InProgress; an administrative write may have
			// moved it mid-flight
			r.logger.Warn("complete skipped, group not in progress",
				"npj", group.NPJ,
				"date", group.NotificationDate.Format("2006-01-02"),
			)
			return nil
		}
		return fmt.Errorf("complete %s: %w", group.NPJ, err)
	}

	r.logger.Info("group processed", "npj", group.NPJ)
	return nil
}

const failQuery = `
	UPDATE notifications
	SET status = $1,
	    attempt_count = attempt_count + 1,
	    last_error = $2
	WHERE npj = $3 AND notification_date = $4 AND status = $5`

const groupAttemptsQuery = `
	SELECT COALESCE(MAX(attempt_count), 0)
	FROM notifications
	WHERE npj = $1 AND notification_date = $2 AND status = $3`

func (r *repo) Fail(ctx context.Context, group TaskGroup, reason string, kind ErrorKind) error {
	status, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Status, error) {
		attempts, err := repository.QueryOne(ctx, tx, groupAttemptsQuery,
			[]any{group.NPJ, group.NotificationDate, StatusInProgress}, scanCount)
		if err != nil {
			return "", err
		}

		status := FailureStatus(kind, attempts+1, r.maxAttempts)

		if err := repository.ExecExpectOne(ctx, tx, failQuery,
			status, reason, group.NPJ, group.NotificationDate, StatusInProgress); err != nil {
			return "", err
		}
		return status, nil
	})

	if err = repository.MapError(err, ErrGroupNotFound, ErrDuplicate); errors.Is(err, ErrGroupNotFound) {
		r.logger.Warn("fail skipped, group not in progress", "npj", group.NPJ)
		return nil
	}
	if err != nil {
		return fmt.Errorf("fail %s: %w", group.NPJ, err)
	}

	r.logger.Warn("group failed",
		"npj", group.NPJ,
		"kind", kind,
		"status", status,
		"reason", reason,
	)
	return nil
}

const countPendingQuery = `
	SELECT COUNT(DISTINCT (npj, notification_date))
	FROM notifications
	WHERE status = $1`

func (r *repo) CountPending(ctx context.Context) (int, error) {
	count, err := repository.QueryOne(ctx, r.db, countPendingQuery, []any{StatusPending}, scanCount)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return count, nil
}

const processedNPJsQuery = `
	SELECT DISTINCT npj
	FROM notifications
	WHERE status = $1
	ORDER BY npj`

func (r *repo) ProcessedNPJs(ctx context.Context) ([]string, error) {
	npjs, err := repository.QueryMany(ctx, r.db, processedNPJsQuery, []any{StatusProcessed}, scanNPJ)
	if err != nil {
		return nil, fmt.Errorf("processed cases: %w", err)
	}
	return npjs, nil
}

// resetStaleQuery implements the crash-recovery policy: crashed claims and
// transient errors return to the queue with attempt counts intact, so the
// escalation ceiling still applies across runs. Permanent, validation,
// attention, and archived rows stay where they are.
const resetStaleQuery = `
	UPDATE notifications
	SET status = $1
	WHERE status IN ($2, $3, $4)`

func (r *repo) ResetStale(ctx context.Context) (int, error) {
	n, err := repository.ExecCount(ctx, r.db, resetStaleQuery,
		StatusPending, StatusInProgress, StatusError, StatusErrorPortal)
	if err != nil {
		return 0, fmt.Errorf("reset stale: %w", err)
	}

	if n > 0 {
		r.logger.Info("stale notifications reset to pending", "rows", n)
	}
	return n, nil
}

const archiveQuery = `
	UPDATE notifications
	SET status = $1
	WHERE npj = $2 AND status = $3`

func (r *repo) Archive(ctx context.Context, npj string) (int, error) {
	n, err := repository.ExecCount(ctx, r.db, archiveQuery,
		StatusArchived, npj, StatusProcessed)
	if err != nil {
		return 0, fmt.Errorf("archive %s: %w", npj, err)
	}
	return n, nil
}

func (r *repo) Unarchive(ctx context.Context, npj string) (int, error) {
	n, err := repository.ExecCount(ctx, r.db, archiveQuery,
		StatusProcessed, npj, StatusArchived)
	if err != nil {
		return 0, fmt.Errorf("unarchive %s: %w", npj, err)
	}
	return n, nil
}
