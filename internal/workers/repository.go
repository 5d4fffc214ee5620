package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/onenotify/onenotify/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a roster store implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "workers"),
	}
}

func scanWorker(s repository.Scanner) (Worker, error) {
	var w Worker
	err := s.Scan(&w.ID, &w.Name, &w.Profile, &w.Active)
	return w, err
}

const listQuery = `
	SELECT id, name, profile, active
	FROM workers
	ORDER BY id`

func (r *repo) List(ctx context.Context) ([]Worker, error) {
	ws, err := repository.QueryMany(ctx, r.db, listQuery, nil, scanWorker)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	return ws, nil
}

const poolQuery = `
	SELECT id, name, profile, active
	FROM workers
	WHERE active AND profile = $1
	ORDER BY id`

func (r *repo) EligiblePool(ctx context.Context, poolKey string) ([]Worker, error) {
	ws, err := repository.QueryMany(ctx, r.db, poolQuery, []any{poolKey}, scanWorker)
	if err != nil {
		return nil, fmt.Errorf("eligible pool %s: %w", poolKey, err)
	}
	return ws, nil
}

const cursorQuery = `
	SELECT last_worker_id
	FROM assignment_cursors
	WHERE pool_key = $1`

const cursorUpsert = `
	INSERT INTO assignment_cursors (pool_key, last_worker_id)
	VALUES ($1, $2)
	ON CONFLICT (pool_key) DO UPDATE SET last_worker_id = EXCLUDED.last_worker_id`

func (r *repo) NextAssignee(ctx context.Context, polo string) (*Worker, error) {
	poolKey := PoolKey(polo)

	pool, err := r.EligiblePool(ctx, poolKey)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 && poolKey != PoolGeneral {
		poolKey = PoolGeneral
		if pool, err = r.EligiblePool(ctx, poolKey); err != nil {
			return nil, err
		}
	}
	if len(pool) == 0 {
		r.logger.Warn("no active worker eligible, leaving unassigned", "pool", poolKey)
		return nil, nil
	}

	// cursor read and advance share a transaction so the sequential
	// processing loop always observes its own previous assignment
	next, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Worker, error) {
		var lastID int64
		err := tx.QueryRowContext(ctx, cursorQuery, poolKey).Scan(&lastID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return Worker{}, err
		}

		next, _ := NextInPool(pool, lastID)

		if _, err := repository.ExecCount(ctx, tx, cursorUpsert, poolKey, next.ID); err != nil {
			return Worker{}, err
		}
		return next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("next assignee %s: %w", poolKey, err)
	}

	r.logger.Info("worker assigned", "pool", poolKey, "worker", next.Name)
	return &next, nil
}
