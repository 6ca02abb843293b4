package database

import (
	"context"
	"fmt"

	"PersonalAssistant/database/postgres"
	"PersonalAssistant/database/sqlite"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS voice_commands (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		mode TEXT NOT NULL DEFAULT '',
		transcript TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		task_id TEXT NOT NULL DEFAULT '',
		draft_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS task_drafts (
		id TEXT PRIMARY KEY,
		draft TEXT NOT NULL,
		transcript TEXT NOT NULL DEFAULT '',
		last_error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reminder_instructions (
		id TEXT PRIMARY KEY,
		owner_key TEXT NOT NULL UNIQUE,
		notification_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		frequency TEXT NOT NULL DEFAULT '',
		deliver_at TIMESTAMP NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		category TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'default',
		suppressible BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	)`,
}

// Open connects to the configured driver. sqlite is the on-device default.
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "", "sqlite":
		return sqlite.New(dsn)
	case "postgres":
		return postgres.New(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Migrate creates the tables used by the repositories.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
