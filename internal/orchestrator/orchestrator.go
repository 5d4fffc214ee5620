// Package orchestrator drives a full automation run: schema/recovery init,
// one extraction cycle, the batch processing loop, and the final teardown
// with a persisted run summary.
package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onenotify/onenotify/internal/config"
	"github.com/onenotify/onenotify/internal/details"
	"github.com/onenotify/onenotify/internal/extraction"
	"github.com/onenotify/onenotify/internal/migrations"
	"github.com/onenotify/onenotify/internal/portal"
	"github.com/onenotify/onenotify/internal/runs"
	"github.com/onenotify/onenotify/internal/session"
	"github.com/onenotify/onenotify/internal/tasks"
)

// ExtractionStage captures and acknowledges source notifications.
type ExtractionStage interface {
	Run(ctx context.Context, page portal.Page) (extraction.Stats, error)
	AcknowledgeProcessed(ctx context.Context, page portal.Page, npjs []string) (int, error)
}

// ProcessingStage works through claimed task groups.
type ProcessingStage interface {
	ProcessBatch(ctx context.Context, sess *session.Session, groups []tasks.TaskGroup) (details.BatchStats, *session.Session, error)
}

// SessionManager opens, renews, and closes portal sessions.
type SessionManager interface {
	Open(ctx context.Context) (*session.Session, error)
	EnsureFresh(ctx context.Context, s *session.Session, expired bool) (*session.Session, error)
	Close(s *session.Session)
}

// Orchestrator wires the stages into one run.
type Orchestrator struct {
	sessions SessionManager
	extract  ExtractionStage
	process  ProcessingStage
	store    tasks.System
	runLog   runs.System
	db       *sql.DB
	proc     *config.ProcessingConfig
	logger   *slog.Logger
	clock    func() time.Time
	migrate  func(*sql.DB) error
}

// New creates an orchestrator applying the embedded migrations at Init.
func New(
	sessions SessionManager,
	extract ExtractionStage,
	process ProcessingStage,
	store tasks.System,
	runLog runs.System,
	db *sql.DB,
	procCfg *config.ProcessingConfig,
	logger *slog.Logger,
) *Orchestrator {
	return NewWithMigrator(sessions, extract, process, store, runLog, db, procCfg, logger, migrations.Up)
}

// NewWithMigrator creates an orchestrator with an injectable schema migrator.
func NewWithMigrator(
	sessions SessionManager,
	extract ExtractionStage,
	process ProcessingStage,
	store tasks.System,
	runLog runs.System,
	db *sql.DB,
	procCfg *config.ProcessingConfig,
	logger *slog.Logger,
	migrate func(*sql.DB) error,
) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		extract:  extract,
		process:  process,
		store:    store,
		runLog:   runLog,
		db:       db,
		proc:     procCfg,
		logger:   logger.With("system", "orchestrator"),
		clock:    time.Now,
		migrate:  migrate,
	}
}

// Run executes a full automation run and always persists a run summary,
// fatal or not. The returned error is the run's fatal error, nil on clean
// completion even when individual tasks failed.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	summary := runs.NewSummary(o.clock())

	defer func() {
		o.finish(summary, err)
	}()

	if err = o.Init(ctx); err != nil {
		return err
	}

	stats, extractErr := o.ExtractionCycle(ctx)
	summary.Saved = stats.Saved
	summary.Acknowledged = stats.Acknowledged
	if len(stats.NPJs) > 0 {
		o.logger.Info("extraction touched cases", "count", len(stats.NPJs), "npjs", stats.NPJs)
	}

	if extractErr != nil {
		// exhausted logins mean no session can be opened at all; the
		// continuation policy only covers failures past that point
		if errors.Is(extractErr, session.ErrUnrecoverable) {
			return extractErr
		}

		pending, countErr := o.store.CountPending(ctx)
		if countErr != nil {
			return errors.Join(extractErr, countErr)
		}
		if !o.proc.ContinueAfterExtraction() || pending == 0 {
			return extractErr
		}
		o.logger.Warn("extraction failed, continuing with queued work",
			"pending", pending,
			"error", extractErr,
		)
	}

	err = o.ProcessingLoop(ctx, summary)
	return err
}

// Init ensures the schema is current and returns crashed work to the queue.
func (o *Orchestrator) Init(ctx context.Context) error {
	if err := o.migrate(o.db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	reset, err := o.store.ResetStale(ctx)
	if err != nil {
		return fmt.Errorf("recover stale work: %w", err)
	}
	if reset > 0 {
		o.logger.Info("recovered interrupted work", "groups", reset)
	}
	return nil
}

// AcknowledgeOnly clears source notifications re-presented for cases the
// store already processed, without capturing anything new. Administrative
// mode behind the -ack-only flag; no run summary is recorded and the schema
// is expected to be in place from earlier runs.
func (o *Orchestrator) AcknowledgeOnly(ctx context.Context) error {
	npjs, err := o.store.ProcessedNPJs(ctx)
	if err != nil {
		return err
	}
	if len(npjs) == 0 {
		o.logger.Info("no processed cases to acknowledge")
		return nil
	}

	sess, err := o.sessions.Open(ctx)
	if err != nil {
		return err
	}
	defer o.sessions.Close(sess)

	n, err := o.extract.AcknowledgeProcessed(ctx, sess.Page(), npjs)
	if err != nil {
		return err
	}

	o.logger.Info("acknowledgement-only run finished",
		"cases", len(npjs),
		"acknowledged", n,
	)
	return nil
}

// ExtractionCycle runs the extraction stage once under a dedicated session.
func (o *Orchestrator) ExtractionCycle(ctx context.Context) (extraction.Stats, error) {
	sess, err := o.sessions.Open(ctx)
	if err != nil {
		return extraction.Stats{}, err
	}
	defer o.sessions.Close(sess)

	return o.extract.Run(ctx, sess.Page())
}

// ProcessingLoop claims and processes batches until the queue drains, a
// batch makes no progress, or a fatal error surfaces. Session expiry inside
// a batch renews the session and continues.
func (o *Orchestrator) ProcessingLoop(ctx context.Context, summary *runs.Summary) error {
	sess, err := o.sessions.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { o.sessions.Close(sess) }()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pending, err := o.store.CountPending(ctx)
		if err != nil {
			return err
		}
		if pending == 0 {
			o.logger.Info("queue drained")
			return nil
		}

		sess, err = o.sessions.EnsureFresh(ctx, sess, false)
		if err != nil {
			return err
		}

		groups, err := o.store.ClaimBatch(ctx, o.proc.BatchSize)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			o.logger.Warn("pending groups reported but none claimable, stopping",
				"pending", pending,
			)
			return nil
		}

		stats, fresh, err := o.process.ProcessBatch(ctx, sess, groups)
		sess = fresh
		summary.Succeeded += stats.Succeeded
		summary.Failed += stats.Failed
		summary.DocketCount += stats.DocketEntries
		summary.Documents += stats.Documents

		if errors.Is(err, session.ErrExpired) {
			sess, err = o.sessions.EnsureFresh(ctx, sess, true)
			if err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		remaining, err := o.store.CountPending(ctx)
		if err != nil {
			return err
		}
		if stats.Succeeded == 0 && remaining >= pending {
			o.logger.Warn("batch made no progress, stopping",
				"pending", remaining,
				"failed", stats.Failed,
			)
			return nil
		}
	}
}

// finish stamps and persists the run summary and writes the operator report.
// Runs on every exit path, including fatal ones.
func (o *Orchestrator) finish(summary *runs.Summary, fatal error) {
	summary.Finish(o.clock(), fatal)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := o.runLog.Save(ctx, summary); err != nil {
		o.logger.Error("run summary could not be saved", "error", err)
	}

	level := slog.LevelInfo
	if summary.Fatal {
		level = slog.LevelError
	}
	o.logger.Log(context.Background(), level, "run finished",
		"run", summary.ID,
		"duration", summary.Duration().Round(time.Second),
		"saved", summary.Saved,
		"acknowledged", summary.Acknowledged,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"docket_entries", summary.DocketCount,
		"documents", summary.Documents,
		"fatal", summary.Fatal,
	)
}
