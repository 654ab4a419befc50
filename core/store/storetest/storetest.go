// Package storetest opens throwaway SQLite databases for package tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"drdesk/config"
	"drdesk/core/store"
	"drdesk/core/utils"
)

func Open(t testing.TB) *store.DB {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBURL:    filepath.Join(t.TempDir(), "drdesk.db"),
	}
	logger := utils.NewNopLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db
}
