package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/onenotify/onenotify/internal/config"
	"github.com/onenotify/onenotify/internal/details"
	"github.com/onenotify/onenotify/internal/extraction"
	"github.com/onenotify/onenotify/internal/infrastructure"
	"github.com/onenotify/onenotify/internal/orchestrator"
	"github.com/onenotify/onenotify/internal/portal/pwdriver"
	"github.com/onenotify/onenotify/internal/runs"
	"github.com/onenotify/onenotify/internal/session"
	"github.com/onenotify/onenotify/internal/tasks"
	"github.com/onenotify/onenotify/internal/workers"
)

func main() {
	os.Exit(run())
}

func run() int {
	automated := flag.Bool("automated", false, "Run without the interactive confirmation prompt")
	ackOnly := flag.Bool("ack-only", false, "Only acknowledge source notifications for cases already processed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialization error: %v\n", err)
		return 1
	}
	logger := infra.Logger

	if !*automated && !confirm() {
		logger.Info("run cancelled by operator")
		return 0
	}

	if err := infra.Start(); err != nil {
		logger.Error("infrastructure start failed", "error", err)
		return 1
	}
	infra.Lifecycle.NotifySignals()

	db := infra.Database.Connection()
	taskStore := tasks.New(db, logger, cfg.Processing.MaxAttempts)
	roster := workers.New(db, logger)
	runLog := runs.New(db, logger)

	loginFlow := pwdriver.NewLoginFlow(&cfg.Portal, logger)
	sessions := session.New(loginFlow, &cfg.Session, logger)

	extract := extraction.New(taskStore, &cfg.Portal, logger)
	process := details.New(taskStore, roster, infra.Storage, sessions,
		&cfg.Portal, &cfg.Processing, logger)

	orch := orchestrator.New(sessions, extract, process, taskStore, runLog,
		db, &cfg.Processing, logger)

	logger.Info("starting notification run",
		"version", cfg.Version,
		"env", cfg.Env(),
		"ack_only", *ackOnly,
	)

	var runErr error
	if *ackOnly {
		runErr = orch.AcknowledgeOnly(infra.Lifecycle.Context())
	} else {
		runErr = orch.Run(infra.Lifecycle.Context())
	}

	if err := infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}

	if runErr != nil {
		logger.Error("run failed", "error", runErr)
		return 1
	}
	return 0
}

func confirm() bool {
	fmt.Print("Start notification run? [y/N]: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "s", "sim":
		return true
	default:
		return false
	}
}
