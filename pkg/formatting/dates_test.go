package formatting_test

import (
	"errors"
	"testing"
	"time"

	"github.com/onenotify/onenotify/pkg/formatting"
)

func TestParseDate(t *testing.T) {
	t.Run("bare date", func(t *testing.T) {
		got, err := formatting.ParseDate("15/06/2024")
		if err != nil {
			t.Fatalf("ParseDate error: %v", err)
		}
		if got.Day() != 15 || got.Month() != time.June || got.Year() != 2024 {
			t.Errorf("ParseDate = %v, want 2024-06-15", got)
		}
	})

	t.Run("trailing time of day", func(t *testing.T) {
		got, err := formatting.ParseDate("15/06/2024 14:32")
		if err != nil {
			t.Fatalf("ParseDate error: %v", err)
		}
		if got.Day() != 15 || got.Month() != time.June {
			t.Errorf("ParseDate = %v, want 2024-06-15", got)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, input := range []string{"", "2024-06-15", "32/06/2024", "15/13/2024"} {
			if _, err := formatting.ParseDate(input); !errors.Is(err, formatting.ErrInvalidDate) {
				t.Errorf("ParseDate(%q) = %v, want ErrInvalidDate", input, err)
			}
		}
	})
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC)
	if got := formatting.FormatDate(d); got != "05/06/2024" {
		t.Errorf("FormatDate = %q, want 05/06/2024", got)
	}
}

func TestDateWindow(t *testing.T) {
	t.Run("three days", func(t *testing.T) {
		ref := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
		got := formatting.DateWindow(ref, 3)

		want := []string{"15/06/2024", "14/06/2024", "13/06/2024"}
		if len(got) != len(want) {
			t.Fatalf("DateWindow length = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("DateWindow[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("crosses month boundary", func(t *testing.T) {
		ref := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
		got := formatting.DateWindow(ref, 3)

		want := []string{"01/03/2024", "29/02/2024", "28/02/2024"}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("DateWindow[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("minimum of one day", func(t *testing.T) {
		ref := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
		got := formatting.DateWindow(ref, 0)
		if len(got) != 1 || got[0] != "15/06/2024" {
			t.Errorf("DateWindow = %v, want [15/06/2024]", got)
		}
	})
}
