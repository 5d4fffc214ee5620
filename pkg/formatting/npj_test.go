package formatting_test

import (
	"errors"
	"testing"

	"github.com/onenotify/onenotify/pkg/formatting"
)

func TestParseNPJ(t *testing.T) {
	t.Run("full form", func(t *testing.T) {
		got, err := formatting.ParseNPJ("2023/0012345-001")
		if err != nil {
			t.Fatalf("ParseNPJ error: %v", err)
		}
		if got.Year != 2023 || got.Number != 12345 || got.Variation != 1 {
			t.Errorf("ParseNPJ = %+v, want {Year:2023 Number:12345 Variation:1}", got)
		}
	})

	t.Run("short process number", func(t *testing.T) {
		got, err := formatting.ParseNPJ("2024/42-003")
		if err != nil {
			t.Fatalf("ParseNPJ error: %v", err)
		}
		if got.Number != 42 || got.Variation != 3 {
			t.Errorf("ParseNPJ = %+v, want Number 42, Variation 3", got)
		}
	})

	t.Run("surrounding whitespace", func(t *testing.T) {
		if _, err := formatting.ParseNPJ("  2023/0012345-001  "); err != nil {
			t.Errorf("ParseNPJ error: %v", err)
		}
	})

	t.Run("invalid forms", func(t *testing.T) {
		for _, input := range []string{
			"",
			"2023-0012345/001",
			"23/0012345-001",
			"2023/12345678-001",
			"2023/0012345-1",
			"abcd/0012345-001",
		} {
			if _, err := formatting.ParseNPJ(input); !errors.Is(err, formatting.ErrInvalidNPJ) {
				t.Errorf("ParseNPJ(%q) = %v, want ErrInvalidNPJ", input, err)
			}
		}
	})
}

func TestNPJString(t *testing.T) {
	npj := formatting.NPJ{Year: 2024, Number: 42, Variation: 3}
	if got := npj.String(); got != "2024/0000042-003" {
		t.Errorf("String = %q, want 2024/0000042-003", got)
	}
}

func TestNPJPathID(t *testing.T) {
	npj := formatting.NPJ{Year: 2023, Number: 12345, Variation: 1}
	if got := npj.PathID(); got != "20230012345" {
		t.Errorf("PathID = %q, want 20230012345", got)
	}
}

func TestNPJDirName(t *testing.T) {
	npj := formatting.NPJ{Year: 2023, Number: 12345, Variation: 1}
	if got := npj.DirName(); got != "2023_0012345-001" {
		t.Errorf("DirName = %q, want 2023_0012345-001", got)
	}
}
