package workers

import "context"

// System defines the roster and assignment contract.
type System interface {
	// List returns every worker on the roster, active or not, ordered by ID.
	// Roster inspection for staff tooling; the processing path itself only
	// draws from EligiblePool.
	List(ctx context.Context) ([]Worker, error)

	// EligiblePool returns the active workers whose profile matches the
	// given pool key, ordered by ID.
	EligiblePool(ctx context.Context, poolKey string) ([]Worker, error)

	// NextAssignee advances the persisted round-robin cursor for the case's
	// pool and returns the selected worker. An empty polo_ativo pool falls
	// back to the general pool; when no active worker is eligible at all it
	// returns nil without error and the caller leaves the task unassigned.
	NextAssignee(ctx context.Context, polo string) (*Worker, error)
}
