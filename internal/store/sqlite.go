package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS user_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_user_records_lookup ON user_records(user_id, domain, recorded_at);

	CREATE TABLE IF NOT EXISTS user_conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		message_role TEXT NOT NULL,
		message_content TEXT NOT NULL,
		turn_index INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_user_conversations_user ON user_conversations(user_id, timestamp);

	CREATE TABLE IF NOT EXISTS knowledge_base (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category TEXT NOT NULL,
		topic TEXT NOT NULL,
		content TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	`

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLStore{db: db, dialect: dialectSQLite}
	if err := store.initSchema(sqliteSchema); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}
