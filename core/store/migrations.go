package store

import (
	"context"
	"embed"
	"fmt"

	"drdesk/core/utils"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS incidents (
		incident_id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'created',
		title TEXT NOT NULL DEFAULT '',
		selected_dept TEXT NOT NULL DEFAULT '',
		incident_type TEXT NOT NULL DEFAULT '',
		date_opened TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_status_updated ON incidents(status, updated_at);`,
	`CREATE TABLE IF NOT EXISTS department_selections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		incident_id TEXT NOT NULL,
		department TEXT NOT NULL,
		selected_dept TEXT NOT NULL DEFAULT '',
		incident_type TEXT NOT NULL DEFAULT '',
		approval INTEGER NOT NULL DEFAULT 0,
		informed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'created',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_department_selections_incident ON department_selections(incident_id);`,
	`CREATE TABLE IF NOT EXISTS incident_stages (
		kind TEXT NOT NULL,
		incident_id TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (kind, incident_id)
	);`,
	`CREATE TABLE IF NOT EXISTS incident_id_counters (
		scope TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		roles TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS incident_attachments (
		id TEXT PRIMARY KEY,
		incident_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		blob_key TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_incident_attachments_incident ON incident_attachments(incident_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		action TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);`,
}

func ApplyMigrations(ctx context.Context, db *DB, logger *utils.Logger) error {
	if db.Dialect == DialectSQLite {
		return applySQLiteMigrations(ctx, db, logger)
	}
	return applyGooseMigrations(ctx, db, logger)
}

func applySQLiteMigrations(ctx context.Context, db *DB, logger *utils.Logger) error {
	if logger != nil {
		logger.Printf("applying sqlite migrations")
	}
	for i, stmt := range sqliteMigrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migration #%d failed: %w", i+1, err)
		}
	}
	return nil
}

func applyGooseMigrations(ctx context.Context, db *DB, logger *utils.Logger) error {
	goose.SetBaseFS(postgresMigrations)
	defer goose.SetBaseFS(nil)
	if logger != nil {
		goose.SetLogger(gooseLogger{logger: logger})
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations/postgres"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

type gooseLogger struct {
	logger *utils.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.logger.Printf(format, v...)
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.logger.Errorf(format, v...)
}
