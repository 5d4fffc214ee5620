// Package details implements the per-case processing stage: for each claimed
// task group it opens the case detail page, captures docket entries and
// documents within the notification's date window, and completes or fails
// the group in the task store.
package details

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/onenotify/onenotify/internal/config"
	"github.com/onenotify/onenotify/internal/portal"
	"github.com/onenotify/onenotify/internal/session"
	"github.com/onenotify/onenotify/internal/tasks"
	"github.com/onenotify/onenotify/internal/workers"
	"github.com/onenotify/onenotify/pkg/formatting"
	"github.com/onenotify/onenotify/pkg/storage"
)

// SessionKeeper renews the portal session between tasks.
type SessionKeeper interface {
	EnsureFresh(ctx context.Context, s *session.Session, expired bool) (*session.Session, error)
}

// BatchStats accumulates what one batch did.
type BatchStats struct {
	Succeeded     int
	Failed        int
	DocketEntries int
	Documents     int
}

func (b *BatchStats) add(other BatchStats) {
	b.Succeeded += other.Succeeded
	b.Failed += other.Failed
	b.DocketEntries += other.DocketEntries
	b.Documents += other.Documents
}

// Stage processes claimed task groups against the portal.
type Stage struct {
	store    tasks.System
	roster   workers.System
	docs     storage.System
	sessions SessionKeeper
	portal   *config.PortalConfig
	proc     *config.ProcessingConfig
	logger   *slog.Logger
}

// New creates a detail processing stage.
func New(
	store tasks.System,
	roster workers.System,
	docs storage.System,
	sessions SessionKeeper,
	portalCfg *config.PortalConfig,
	procCfg *config.ProcessingConfig,
	logger *slog.Logger,
) *Stage {
	return &Stage{
		store:    store,
		roster:   roster,
		docs:     docs,
		sessions: sessions,
		portal:   portalCfg,
		proc:     procCfg,
		logger:   logger.With("system", "details"),
	}
}

// ProcessBatch works through the claimed groups strictly in order, renewing
// the session before each task. Per-task failures are recorded and the batch
// continues; a session expiry fails the in-flight task and aborts the batch
// with session.ErrExpired so the caller re-claims under a fresh session.
// Returns the possibly renewed session alongside the stats.
func (s *Stage) ProcessBatch(ctx context.Context, sess *session.Session, groups []tasks.TaskGroup) (BatchStats, *session.Session, error) {
	var stats BatchStats

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return stats, sess, err
		}

		fresh, err := s.sessions.EnsureFresh(ctx, sess, false)
		if err != nil {
			return stats, sess, err
		}
		sess = fresh

		taskStats, err := s.processOne(ctx, sess, group)
		stats.add(taskStats)

		if errors.Is(err, session.ErrExpired) {
			return stats, sess, err
		}
	}

	return stats, sess, nil
}

// processOne runs a single group end to end, recording the outcome in the
// task store. Only session expiry propagates; every other failure is
// consumed here.
func (s *Stage) processOne(ctx context.Context, sess *session.Session, group tasks.TaskGroup) (BatchStats, error) {
	var stats BatchStats

	result, err := s.processGroup(ctx, sess.Page(), group)
	if err != nil {
		stats.Failed = 1
		kind := classify(err)

		if failErr := s.store.Fail(ctx, group, err.Error(), kind); failErr != nil {
			s.logger.Error("failure could not be recorded",
				"npj", group.NPJ,
				"error", failErr,
			)
		}

		if errors.Is(err, session.ErrExpired) {
			return stats, err
		}

		s.logger.Warn("task failed",
			"npj", group.NPJ,
			"kind", kind,
			"error", err,
		)
		return stats, nil
	}

	assigneeID, err := s.pickAssignee(ctx, result.Polo)
	if err != nil {
		stats.Failed = 1
		if failErr := s.store.Fail(ctx, group, err.Error(), tasks.KindAutomation); failErr != nil {
			s.logger.Error("failure could not be recorded", "npj", group.NPJ, "error", failErr)
		}
		return stats, nil
	}

	if err := s.store.Complete(ctx, group, result, assigneeID); err != nil {
		stats.Failed = 1
		s.logger.Error("completion could not be recorded", "npj", group.NPJ, "error", err)
		return stats, nil
	}

	stats.Succeeded = 1
	stats.DocketEntries = len(result.DocketEntries)
	stats.Documents = len(result.Documents)
	return stats, nil
}

func (s *Stage) pickAssignee(ctx context.Context, polo string) (*int64, error) {
	worker, err := s.roster.NextAssignee(ctx, polo)
	if err != nil {
		return nil, fmt.Errorf("assign worker: %w", err)
	}
	if worker == nil {
		return nil, nil
	}
	return &worker.ID, nil
}

// classify maps a processing failure to the error status family it records.
func classify(err error) tasks.ErrorKind {
	switch {
	case errors.Is(err, portal.ErrDocumentStoreUnavailable):
		return tasks.KindPortalTransient
	case errors.Is(err, formatting.ErrInvalidNPJ):
		return tasks.KindPermanent
	default:
		return tasks.KindAutomation
	}
}
