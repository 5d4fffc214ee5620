package tasks_test

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/onenotify/onenotify/internal/tasks"
	"github.com/onenotify/onenotify/pkg/repository"
)

func TestFailureStatus(t *testing.T) {
	t.Run("automation fault below ceiling", func(t *testing.T) {
		if got := tasks.FailureStatus(tasks.KindAutomation, 1, 3); got != tasks.StatusError {
			t.Errorf("FailureStatus = %q, want %q", got, tasks.StatusError)
		}
	})

	t.Run("portal fault below ceiling", func(t *testing.T) {
		if got := tasks.FailureStatus(tasks.KindPortalTransient, 2, 3); got != tasks.StatusErrorPortal {
			t.Errorf("FailureStatus = %q, want %q", got, tasks.StatusErrorPortal)
		}
	})

	t.Run("escalates at ceiling", func(t *testing.T) {
		for _, kind := range []tasks.ErrorKind{tasks.KindAutomation, tasks.KindPortalTransient} {
			if got := tasks.FailureStatus(kind, 3, 3); got != tasks.StatusRequiresAttention {
				t.Errorf("FailureStatus(%q, 3, 3) = %q, want %q", kind, got, tasks.StatusRequiresAttention)
			}
		}
	})

	t.Run("escalates beyond ceiling", func(t *testing.T) {
		if got := tasks.FailureStatus(tasks.KindAutomation, 5, 3); got != tasks.StatusRequiresAttention {
			t.Errorf("FailureStatus = %q, want %q", got, tasks.StatusRequiresAttention)
		}
	})

	t.Run("permanent never escalates", func(t *testing.T) {
		for _, attempts := range []int{1, 3, 10} {
			if got := tasks.FailureStatus(tasks.KindPermanent, attempts, 3); got != tasks.StatusErrorPermanent {
				t.Errorf("FailureStatus(permanent, %d, 3) = %q, want %q", attempts, got, tasks.StatusErrorPermanent)
			}
		}
	})
}

func TestNotificationRecordValidate(t *testing.T) {
	valid := tasks.NotificationRecord{
		NPJ:          "2023/0012345-001",
		Type:         "Inclusão de Documentos no NPJ",
		AdverseParty: "Fulano de Tal",
		Date:         "15/06/2024",
	}

	t.Run("valid record", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Errorf("Validate error: %v", err)
		}
	})

	t.Run("date with time of day", func(t *testing.T) {
		rec := valid
		rec.Date = "15/06/2024 09:41"
		if err := rec.Validate(); err != nil {
			t.Errorf("Validate error: %v", err)
		}
	})

	t.Run("bad identifier", func(t *testing.T) {
		rec := valid
		rec.NPJ = "not-an-npj"
		if err := rec.Validate(); err == nil {
			t.Error("Validate accepted a malformed NPJ")
		}
	})

	t.Run("bad date", func(t *testing.T) {
		rec := valid
		rec.Date = "2024-06-15"
		if err := rec.Validate(); err == nil {
			t.Error("Validate accepted a malformed date")
		}
	})
}

func TestDomainErrorTranslation(t *testing.T) {
	t.Run("missing group", func(t *testing.T) {
		got := repository.MapError(sql.ErrNoRows, tasks.ErrGroupNotFound, tasks.ErrDuplicate)
		if !errors.Is(got, tasks.ErrGroupNotFound) {
			t.Errorf("MapError(ErrNoRows) = %v, want ErrGroupNotFound", got)
		}
	})

	t.Run("uniqueness violation", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "23505"}
		got := repository.MapError(pgErr, tasks.ErrGroupNotFound, tasks.ErrDuplicate)
		if !errors.Is(got, tasks.ErrDuplicate) {
			t.Errorf("MapError(23505) = %v, want ErrDuplicate", got)
		}
	})

	t.Run("other errors untouched", func(t *testing.T) {
		original := errors.New("connection reset")
		if got := repository.MapError(original, tasks.ErrGroupNotFound, tasks.ErrDuplicate); got != original {
			t.Errorf("MapError = %v, want passthrough", got)
		}
	})
}

func TestDistinctGroups(t *testing.T) {
	day := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	rows := []tasks.TaskGroup{
		{NPJ: "2023/0000001-001", NotificationDate: day},
		{NPJ: "2023/0000001-001", NotificationDate: day},
		{NPJ: "2023/0000002-001", NotificationDate: day},
		{NPJ: "2023/0000001-001", NotificationDate: day.AddDate(0, 0, -1)},
	}

	got := tasks.DistinctGroups(rows)
	if len(got) != 3 {
		t.Fatalf("DistinctGroups returned %d groups, want 3", len(got))
	}
	if got[0].NPJ != "2023/0000001-001" || !got[0].NotificationDate.Equal(day) {
		t.Errorf("first group = %+v, want first-seen order preserved", got[0])
	}
	if got[1].NPJ != "2023/0000002-001" {
		t.Errorf("second group = %+v", got[1])
	}
}
