package storage_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/onenotify/onenotify/pkg/formatting"
	"github.com/onenotify/onenotify/pkg/lifecycle"
	"github.com/onenotify/onenotify/pkg/storage"
)

func testStore(t *testing.T) (storage.System, string) {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.New(&storage.Config{BaseDir: dir}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := store.Start(lifecycle.New()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	return store, dir
}

func TestStoreWritesUnderCaseDirectory(t *testing.T) {
	store, dir := testStore(t)
	npj := formatting.NPJ{Year: 2023, Number: 12345, Variation: 1}

	doc, err := store.Store(npj, "peticao.txt", func(path string) error {
		return os.WriteFile(path, []byte("conteudo"), 0o644)
	})
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}

	if doc.Filename != "peticao.txt" {
		t.Errorf("Filename = %q", doc.Filename)
	}
	if doc.RelativePath != "2023_0012345-001/peticao.txt" {
		t.Errorf("RelativePath = %q", doc.RelativePath)
	}
	if doc.SizeBytes != int64(len("conteudo")) {
		t.Errorf("SizeBytes = %d", doc.SizeBytes)
	}
	if doc.PageCount != nil {
		t.Error("PageCount set for a non-PDF file")
	}

	if _, err := os.Stat(filepath.Join(dir, "2023_0012345-001", "peticao.txt")); err != nil {
		t.Errorf("stored file missing: %v", err)
	}
}

func TestStoreSanitizesFilename(t *testing.T) {
	store, _ := testStore(t)
	npj := formatting.NPJ{Year: 2024, Number: 1, Variation: 1}

	doc, err := store.Store(npj, `despacho: "urgente"?.txt`, func(path string) error {
		return os.WriteFile(path, []byte("x"), 0o644)
	})
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}

	if doc.Filename != "despacho_ _urgente__.txt" {
		t.Errorf("Filename = %q, want reserved characters replaced", doc.Filename)
	}
}

func TestStoreSurfacesWriteFailure(t *testing.T) {
	store, _ := testStore(t)
	npj := formatting.NPJ{Year: 2024, Number: 2, Variation: 1}

	_, err := store.Store(npj, "doc.txt", func(string) error {
		return os.ErrPermission
	})
	if err == nil {
		t.Fatal("Store accepted a failed write")
	}
}
