// Package workers manages the analyst roster that processed cases are
// distributed to, including the persisted round-robin assignment cursor.
package workers

import "strings"

// Profile selects which cases a worker is eligible for.
type Profile string

const (
	// ProfileGeneral workers take any case.
	ProfileGeneral Profile = "general"
	// ProfilePoloAtivo workers only take cases where the bank is the
	// plaintiff side.
	ProfilePoloAtivo Profile = "polo_ativo"
)

// Pool keys for the assignment cursor table.
const (
	PoolGeneral   = "general"
	PoolPoloAtivo = "polo_ativo"
)

// Worker is one analyst on the distribution roster.
type Worker struct {
	ID      int64
	Name    string
	Profile Profile
	Active  bool
}

// PoolKey maps a case's polo rendering to the cursor pool it draws from.
// The portal renders the plaintiff side as "ATIVO"; everything else goes
// through the general pool.
func PoolKey(polo string) string {
	if strings.Contains(strings.ToUpper(polo), "ATIVO") {
		return PoolPoloAtivo
	}
	return PoolGeneral
}

// NextInPool picks the round-robin successor of lastID within pool, which
// must be ordered by ID. Wraps at the end; an unknown or zero lastID starts
// over at the first worker. Empty pools return false.
func NextInPool(pool []Worker, lastID int64) (Worker, bool) {
	if len(pool) == 0 {
		return Worker{}, false
	}

	for i, w := range pool {
		if w.ID == lastID {
			return pool[(i+1)%len(pool)], true
		}
	}
	return pool[0], true
}
