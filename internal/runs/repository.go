package runs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/onenotify/onenotify/pkg/repository"
)

// System persists run summaries.
type System interface {
	// Save writes a finished summary.
	Save(ctx context.Context, summary *Summary) error

	// Recent returns the latest summaries, newest first. Reporting read for
	// operators reviewing run history.
	Recent(ctx context.Context, limit int) ([]Summary, error)
}

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a run summary store.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "runs"),
	}
}

const saveQuery = `
	INSERT INTO runs (
		id, started_at, finished_at, duration_seconds,
		saved_count, acknowledged_count, docket_count, document_count,
		succeeded_count, failed_count, fatal, fatal_error
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

func (r *repo) Save(ctx context.Context, s *Summary) error {
	if err := repository.ExecExpectOne(ctx, r.db, saveQuery,
		s.ID, s.StartedAt, s.FinishedAt, int(s.Duration().Seconds()),
		s.Saved, s.Acknowledged, s.DocketCount, s.Documents,
		s.Succeeded, s.Failed, s.Fatal, s.FatalError); err != nil {
		return fmt.Errorf("save run %s: %w", s.ID, err)
	}

	r.logger.Info("run summary saved",
		"run", s.ID,
		"duration", s.Duration().Round(time.Second),
		"saved", s.Saved,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"fatal", s.Fatal,
	)
	return nil
}

const recentQuery = `
	SELECT id, started_at, finished_at,
	       saved_count, acknowledged_count, docket_count, document_count,
	       succeeded_count, failed_count, fatal, fatal_error
	FROM runs
	ORDER BY started_at DESC
	LIMIT $1`

func scanSummary(s repository.Scanner) (Summary, error) {
	var sum Summary
	err := s.Scan(&sum.ID, &sum.StartedAt, &sum.FinishedAt,
		&sum.Saved, &sum.Acknowledged, &sum.DocketCount, &sum.Documents,
		&sum.Succeeded, &sum.Failed, &sum.Fatal, &sum.FatalError)
	return sum, err
}

func (r *repo) Recent(ctx context.Context, limit int) ([]Summary, error) {
	sums, err := repository.QueryMany(ctx, r.db, recentQuery, []any{limit}, scanSummary)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return sums, nil
}
