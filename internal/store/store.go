// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ashureev/vital-labs/internal/domain"
)

// StoredRecord is a raw user history row. Payload decoding happens in the
// fetch layer.
type StoredRecord struct {
	ID         string
	UserID     string
	Domain     domain.DomainID
	RecordedAt time.Time
	Payload    json.RawMessage
}

// RecordQuery selects the most recent records of one domain for a user.
// Zero Since means no time window; zero Limit means no row cap.
type RecordQuery struct {
	UserID string
	Domain domain.DomainID
	Since  time.Time
	Limit  int
}

// Repository defines the interface for reading user history and appending
// conversation records.
type Repository interface {
	// ListRecords returns records newest first.
	ListRecords(ctx context.Context, q RecordQuery) ([]StoredRecord, error)

	// AppendRecord inserts one user history record.
	AppendRecord(ctx context.Context, rec StoredRecord) error

	// ListConversations returns the user's conversation records newest first.
	ListConversations(ctx context.Context, userID string, limit int) ([]domain.ConversationRecord, error)

	// AppendConversation inserts all records in one transaction. Records are
	// append-only; there is no update or delete path.
	AppendConversation(ctx context.Context, records []domain.ConversationRecord) error

	// ListKnowledge returns shared knowledge entries by descending priority.
	ListKnowledge(ctx context.Context, limit int) ([]domain.KnowledgeEntry, error)

	// AppendKnowledge inserts a shared knowledge entry.
	AppendKnowledge(ctx context.Context, entry domain.KnowledgeEntry) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
