// Package runs records one summary row per automation run, giving operators
// a durable history of what each run saved, processed, and failed.
package runs

import (
	"time"

	"github.com/google/uuid"
)

// Summary is the outcome of one full automation run.
type Summary struct {
	ID           uuid.UUID
	StartedAt    time.Time
	FinishedAt   time.Time
	Saved        int
	Acknowledged int
	DocketCount  int
	Documents    int
	Succeeded    int
	Failed       int
	Fatal        bool
	FatalError   *string
}

// NewSummary starts a summary clocked at now.
func NewSummary(now time.Time) *Summary {
	return &Summary{
		ID:        uuid.New(),
		StartedAt: now,
	}
}

// Finish stamps the end of the run. fatal carries the terminating error
// when the run did not complete normally.
func (s *Summary) Finish(now time.Time, fatal error) {
	s.FinishedAt = now
	if fatal != nil {
		msg := fatal.Error()
		s.Fatal = true
		s.FatalError = &msg
	}
}

// Duration is the wall-clock span of the run.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
