// Package infrastructure provides core service initialization for process
// startup. It assembles the common dependencies (lifecycle, logging,
// database, document storage) that the automation stages require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/onenotify/onenotify/internal/config"
	"github.com/onenotify/onenotify/pkg/database"
	"github.com/onenotify/onenotify/pkg/lifecycle"
	"github.com/onenotify/onenotify/pkg/storage"
)

// Infrastructure holds the core systems required by the automation stages.
// It provides a single point of initialization for lifecycle coordination,
// logging, database access, and document storage.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
	}, nil
}

// Start connects the infrastructure systems and registers their shutdown
// hooks with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	return nil
}
