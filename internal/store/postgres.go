package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS user_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		recorded_at BIGINT NOT NULL,
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
		timestamp BIGINT NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_user_conversations_user ON user_conversations(user_id, timestamp);

	CREATE TABLE IF NOT EXISTS knowledge_base (
		id BIGSERIAL PRIMARY KEY,
		category TEXT NOT NULL,
		topic TEXT NOT NULL,
		content TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL
	);
	`

// NewPostgres creates a Postgres-backed repository using lib/pq.
func NewPostgres(dsn string) (Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLStore{db: db, dialect: dialectPostgres}
	if err := store.initSchema(postgresSchema); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

// Open selects the backend by driver name.
func Open(driver, sqlitePath, postgresDSN string) (Repository, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(sqlitePath)
	case "postgres":
		return NewPostgres(postgresDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
