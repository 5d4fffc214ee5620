// Package storage provides the local document store where downloaded case
// files are kept, one directory per NPJ.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/onenotify/onenotify/pkg/formatting"
	"github.com/onenotify/onenotify/pkg/lifecycle"
)

// System manages storage of downloaded documents.
type System interface {
	// Start ensures the base directory exists.
	Start(lc *lifecycle.Coordinator) error
	// Store saves one document under the NPJ's directory. The write callback
	// receives the absolute destination path and is responsible for producing
	// the file there (browser downloads write themselves to a given path).
	Store(npj formatting.NPJ, filename string, write func(path string) error) (SavedDocument, error)
}

// SavedDocument describes a stored file. PageCount is populated for PDFs
// when the file is readable; nil otherwise.
type SavedDocument struct {
	Filename     string `json:"filename"`
	RelativePath string `json:"relative_path"`
	SizeBytes    int64  `json:"size_bytes"`
	PageCount    *int   `json:"page_count,omitempty"`
}

type local struct {
	baseDir string
	logger  *slog.Logger
}

// New creates a local filesystem storage system.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage base dir: %w", err)
	}

	return &local{
		baseDir: abs,
		logger:  logger.With("system", "storage"),
	}, nil
}

func (l *local) Start(_ *lifecycle.Coordinator) error {
	if err := os.MkdirAll(l.baseDir, 0o755); err != nil {
		return fmt.Errorf("create storage base dir: %w", err)
	}

	l.logger.Info("document store ready", "dir", l.baseDir)
	return nil
}

func (l *local) Store(npj formatting.NPJ, filename string, write func(path string) error) (SavedDocument, error) {
	name := sanitizeFilename(filename)

	dir := filepath.Join(l.baseDir, npj.DirName())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SavedDocument{}, fmt.Errorf("create case dir: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := write(path); err != nil {
		return SavedDocument{}, fmt.Errorf("store %s: %w", name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return SavedDocument{}, fmt.Errorf("stat stored file %s: %w", name, err)
	}

	doc := SavedDocument{
		Filename:     name,
		RelativePath: filepath.ToSlash(filepath.Join(npj.DirName(), name)),
		SizeBytes:    info.Size(),
	}

	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		if count, err := api.PageCountFile(path); err == nil {
			doc.PageCount = &count
		} else {
			l.logger.Warn("pdf page count failed", "file", doc.RelativePath, "error", err)
		}
	}

	return doc, nil
}

var invalidFilenameChars = strings.NewReplacer(
	`\`, "_", "/", "_", "*", "_", "?", "_",
	`:`, "_", `"`, "_", "<", "_", ">", "_", "|", "_",
)

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "" {
		name = "documento"
	}
	return invalidFilenameChars.Replace(name)
}
