package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"drdesk/config"
	"drdesk/core/appbootstrap"
	"drdesk/core/store"
	"drdesk/core/utils"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to DRDESK_CONFIG, then environment only)")
	migrateOnly := flag.Bool("migrate-only", false, "apply migrations and exit")
	flag.Parse()

	if err := run(*configPath, *migrateOnly); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath string, migrateOnly bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := utils.NewLoggerWith(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return err
	}
	if migrateOnly {
		logger.Printf("migrations applied")
		return nil
	}
	return appbootstrap.Run(ctx, cfg, db, logger)
}
