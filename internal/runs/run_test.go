package runs_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/onenotify/onenotify/internal/runs"
)

func TestFinishCleanRun(t *testing.T) {
	start := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	s := runs.NewSummary(start)

	if s.ID == uuid.Nil {
		t.Error("summary created without an id")
	}

	s.Finish(start.Add(12*time.Minute), nil)

	if s.Fatal {
		t.Error("clean run marked fatal")
	}
	if s.FatalError != nil {
		t.Errorf("FatalError = %v, want nil", *s.FatalError)
	}
	if s.Duration() != 12*time.Minute {
		t.Errorf("Duration = %v, want 12m", s.Duration())
	}
}

func TestFinishFatalRun(t *testing.T) {
	start := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	s := runs.NewSummary(start)

	s.Finish(start.Add(time.Minute), errors.New("login attempts exhausted"))

	if !s.Fatal {
		t.Error("fatal run not marked")
	}
	if s.FatalError == nil || *s.FatalError != "login attempts exhausted" {
		t.Errorf("FatalError = %v, want the terminating error text", s.FatalError)
	}
}
