// Package sqlitedb is the single-file document store backend.
package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"discord-harvester/utils"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

// DB implements database.Store on SQLite. It is safe for concurrent use and
// several processes may share the same file.
type DB struct {
	db *sql.DB
}

// Open opens (creating when needed) the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// Transactions start as BEGIN IMMEDIATE so a job claim holds the write lock
	// from its first statement.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	utils.Info("Database", "Open", fmt.Sprintf("Successfully connected to the database at %s", path))
	return &DB{db: db}, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			channel_id INTEGER NOT NULL,
			parent_message_id INTEGER,
			user_id INTEGER NOT NULL,
			author_name TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			fetched_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS harvest_jobs (
			id INTEGER PRIMARY KEY,
			discord_id TEXT NOT NULL,
			server_id INTEGER NOT NULL,
			channels TEXT NOT NULL,
			after_bound TEXT NOT NULL DEFAULT '',
			before_bound TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			started_at INTEGER,
			finished_at INTEGER,
			inserted INTEGER,
			error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS servers (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			user_id TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS channels (
			id INTEGER PRIMARY KEY,
			server_id INTEGER NOT NULL,
			name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS analysis_results (
			id INTEGER PRIMARY KEY,
			creator_id INTEGER NOT NULL,
			platform TEXT NOT NULL,
			prompt_key TEXT NOT NULL,
			llm_model TEXT NOT NULL,
			server_id INTEGER NOT NULL,
			channel_id INTEGER NOT NULL,
			period_from INTEGER NOT NULL,
			period_to INTEGER NOT NULL,
			result TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
	}
	for _, q := range tables {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_messages_channel_created ON messages(channel_id, created_at);",
		"CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id);",
		"CREATE INDEX IF NOT EXISTS idx_messages_parent ON messages(parent_message_id);",
		"CREATE INDEX IF NOT EXISTS idx_messages_fetched ON messages(fetched_at);",
		"CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON harvest_jobs(status, created_at);",
		"CREATE INDEX IF NOT EXISTS idx_channels_server ON channels(server_id);",
	}
	for _, q := range indexes {
		if _, err := db.ExecContext(ctx, q); err != nil {
			utils.Warn("Database", "Schema", fmt.Sprintf("failed to create index: %v", err))
		}
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close(context.Context) error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
